package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/boddenberg/lavanderia-crm-go/internal/domain"
)

// itemNamespace scopes deterministic cycle item ids.
var itemNamespace = uuid.MustParse("6f1c2b7e-3d4a-5e8f-9a0b-1c2d3e4f5a6b")

var walkInNames = map[string]struct{}{
	"":                  {},
	"CONSUMIDOR":        {},
	"CONSUMIDOR FINAL":  {},
	"CLIENTE":           {},
	"CLIENTE AVULSO":    {},
	"WALK-IN":           {},
	"WALK IN":           {},
	"NÃO IDENTIFICADO":  {},
	"NAO IDENTIFICADO":  {},
	"SEM NOME":          {},
	"CONSUMIDOR AVULSO": {},
}

// NormalizeName is the soft customer key: trimmed, inner whitespace collapsed,
// upper-cased.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToUpper(name)), " ")
}

// FirstToken returns the first word of a normalized name.
func FirstToken(normalized string) string {
	if i := strings.IndexByte(normalized, ' '); i >= 0 {
		return normalized[:i]
	}
	return normalized
}

// IsWalkIn reports whether a customer field is a generic placeholder.
func IsWalkIn(name string) bool {
	_, ok := walkInNames[NormalizeName(name)]
	return ok
}

// registryIndex looks registry customers up by id and by normalized name.
type registryIndex struct {
	byID   map[string]domain.Customer
	byName map[string]domain.Customer
}

func newRegistryIndex(registry []domain.Customer) registryIndex {
	r := registryIndex{
		byID:   make(map[string]domain.Customer, len(registry)),
		byName: make(map[string]domain.Customer, len(registry)),
	}
	for _, c := range registry {
		if c.ID != "" {
			r.byID[c.ID] = c
		}
		if key := NormalizeName(c.Name); key != "" {
			if _, dup := r.byName[key]; !dup {
				r.byName[key] = c
			}
		}
	}
	return r
}

// identity keys a sale by the registry name when its CustomerID is known,
// otherwise by its normalized name. Walk-ins resolve to "".
func (r registryIndex) identity(s domain.Sale) string {
	if s.CustomerID != "" {
		if c, ok := r.byID[s.CustomerID]; ok {
			if key := NormalizeName(c.Name); !IsWalkIn(key) {
				return key
			}
		}
	}
	key := NormalizeName(s.CustomerName)
	if IsWalkIn(key) {
		return ""
	}
	return key
}

// foldText upper-cases and strips diacritics ("Máquina" -> "MAQUINA").
func foldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToUpper(out)
}

// normalizeMachine folds a machine label and strips leading zeros from every
// digit run, so "007", "7" and "Máquina 07" vs "Máquina 7" collapse.
func normalizeMachine(label string) string {
	s := strings.Join(strings.Fields(foldText(label)), " ")
	var b strings.Builder
	b.Grow(len(s))
	inDigits := false
	pendingZero := false
	for _, r := range s {
		if r >= '0' && r <= '9' {
			if !inDigits {
				inDigits = true
				if r == '0' {
					pendingZero = true
					continue
				}
			} else if pendingZero {
				if r == '0' {
					continue
				}
			}
			pendingZero = false
			b.WriteRune(r)
			continue
		}
		if inDigits && pendingZero {
			b.WriteByte('0')
		}
		inDigits, pendingZero = false, false
		b.WriteRune(r)
	}
	if inDigits && pendingZero {
		b.WriteByte('0')
	}
	return b.String()
}

// ItemID returns the order's own id or a deterministic UUIDv5 of its
// identifying fields, used to deduplicate appended cycle items.
func ItemID(o domain.Order) string {
	if o.ID != "" {
		return o.ID
	}
	key := fmt.Sprintf("%s|%s|%s|%d",
		NormalizeName(o.Store),
		normalizeMachine(o.Machine),
		o.Date.UTC().Format(time.RFC3339Nano),
		int64(math.Round(o.Value*100)),
	)
	return uuid.NewSHA1(itemNamespace, []byte(key)).String()
}

// SuggestAliases lists pairs of customer keys sharing a first name whose
// Levenshtein distance is at most maxDistance. Keys are not merged; this only
// surfaces fragmented identities for manual review.
func SuggestAliases(names []string, maxDistance int) []domain.AliasSuggestion {
	if maxDistance <= 0 {
		maxDistance = 2
	}
	seen := make(map[string]struct{}, len(names))
	byFirst := make(map[string][]string)
	for _, n := range names {
		key := NormalizeName(n)
		if IsWalkIn(key) {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		first := FirstToken(key)
		byFirst[first] = append(byFirst[first], key)
	}

	var out []domain.AliasSuggestion
	for _, group := range byFirst {
		sort.Strings(group)
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				d := levenshtein.ComputeDistance(group[i], group[j])
				if d <= maxDistance {
					out = append(out, domain.AliasSuggestion{A: group[i], B: group[j], Distance: d})
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}
