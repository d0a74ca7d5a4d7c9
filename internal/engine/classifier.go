package engine

import (
	"regexp"
	"strconv"
	"strings"
)

// CycleInput is the free text a classification is derived from.
type CycleInput struct {
	Service string
	Machine string
	Store   string
}

// Classification is the outcome for one cycle. Both false = unclassified.
type Classification struct {
	IsWash bool
	IsDry  bool
}

// Unclassified reports whether no direction was detected.
func (c Classification) Unclassified() bool { return !c.IsWash && !c.IsDry }

// Rule is one step of the ordered classification chain. ok=false passes the
// input to the next rule.
type Rule interface {
	Name() string
	Classify(in CycleInput) (c Classification, ok bool)
}

// Classifier runs its rules in order; the first rule that answers wins.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds a classifier from an explicit rule chain.
func NewClassifier(rules ...Rule) *Classifier {
	return &Classifier{rules: rules}
}

// DefaultClassifier is parity (for the given stores), then keywords, then
// machine codes such as "L3" / "S4".
func DefaultClassifier(parityStores []string) *Classifier {
	return NewClassifier(
		ParityRule{StoreMarkers: parityStores},
		KeywordRule{},
		MachineCodeRule{},
	)
}

// Classify returns the classification of the first matching rule.
func (c *Classifier) Classify(in CycleInput) Classification {
	for _, r := range c.rules {
		if cls, ok := r.Classify(in); ok {
			return cls
		}
	}
	return Classification{}
}

// ClassifyWith reports which rule answered, "" when none did.
func (c *Classifier) ClassifyWith(in CycleInput) (Classification, string) {
	for _, r := range c.rules {
		if cls, ok := r.Classify(in); ok {
			return cls, r.Name()
		}
	}
	return Classification{}, ""
}

// ============================================================
// Rules
// ============================================================

var numeralRe = regexp.MustCompile(`\d+`)

// ParityRule: stores matching a marker number their machines so that even =
// washer and odd = dryer. It overrides any naming.
type ParityRule struct {
	StoreMarkers []string
}

func (ParityRule) Name() string { return "parity" }

func (r ParityRule) Classify(in CycleInput) (Classification, bool) {
	if len(r.StoreMarkers) == 0 || in.Machine == "" {
		return Classification{}, false
	}
	store := foldText(in.Store)
	matched := false
	for _, m := range r.StoreMarkers {
		m = strings.TrimSpace(foldText(m))
		if m != "" && strings.Contains(store, m) {
			matched = true
			break
		}
	}
	if !matched {
		return Classification{}, false
	}
	num := numeralRe.FindString(in.Machine)
	if num == "" {
		return Classification{}, false
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return Classification{}, false
	}
	if n%2 == 0 {
		return Classification{IsWash: true}, true
	}
	return Classification{IsDry: true}, true
}

var (
	washWords = map[string]struct{}{
		"LAVA": {}, "LAVAR": {}, "LAVAGEM": {}, "LAVAGENS": {}, "LAVADORA": {}, "LAVADORAS": {},
		"WASH": {}, "WASHER": {}, "WASHING": {},
	}
	dryWords = map[string]struct{}{
		"SECA": {}, "SECAR": {}, "SECAGEM": {}, "SECAGENS": {}, "SECADORA": {}, "SECADORAS": {},
		"SECADOR": {}, "DRY": {}, "DRYER": {}, "DRYING": {},
	}
	productWords = map[string]struct{}{
		"SABAO": {}, "AMACIANTE": {}, "ALVEJANTE": {}, "PRODUTO": {}, "PRODUTOS": {},
		"SACOLA": {}, "DETERGENTE": {}, "PERFUME": {}, "TIRA": {}, "MANCHAS": {},
	}
	washMinutes = map[int]struct{}{30: {}, 35: {}}
	dryMinutes  = map[int]struct{}{15: {}, 45: {}}

	minutesRe = regexp.MustCompile(`(\d+)\s*MIN`)
	wordRe    = regexp.MustCompile(`[A-Z]+`)
)

// KeywordRule matches wash/dry words and cycle durations in the machine and
// service labels. "Lava e seca" combos classify as both.
type KeywordRule struct{}

func (KeywordRule) Name() string { return "keyword" }

func (KeywordRule) Classify(in CycleInput) (Classification, bool) {
	text := foldText(in.Machine + " " + in.Service)
	var c Classification
	for _, w := range wordRe.FindAllString(text, -1) {
		if _, ok := washWords[w]; ok {
			c.IsWash = true
		}
		if _, ok := dryWords[w]; ok {
			c.IsDry = true
		}
	}
	if c.Unclassified() {
		for _, m := range minutesRe.FindAllStringSubmatch(text, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if _, ok := washMinutes[n]; ok {
				c.IsWash = true
			}
			if _, ok := dryMinutes[n]; ok {
				c.IsDry = true
			}
		}
	}
	return c, !c.Unclassified()
}

var machineCodeRe = regexp.MustCompile(`^([LS])\s*-?\s*\d+$`)

// MachineCodeRule handles short codes: "L03" washer, "S4" dryer.
type MachineCodeRule struct{}

func (MachineCodeRule) Name() string { return "machine_code" }

func (MachineCodeRule) Classify(in CycleInput) (Classification, bool) {
	m := machineCodeRe.FindStringSubmatch(strings.TrimSpace(foldText(in.Machine)))
	if m == nil {
		return Classification{}, false
	}
	if m[1] == "L" {
		return Classification{IsWash: true}, true
	}
	return Classification{IsDry: true}, true
}

// IsProduct reports whether a label names a retail product rather than a cycle.
func IsProduct(label string) bool {
	for _, w := range wordRe.FindAllString(foldText(label), -1) {
		if _, ok := productWords[w]; ok {
			return true
		}
	}
	return false
}
