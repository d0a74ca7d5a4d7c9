package engine

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/boddenberg/lavanderia-crm-go/internal/domain"
)

const day = 24 * time.Hour

var shiftOrder = []domain.Shift{
	domain.ShiftMorning, domain.ShiftAfternoon, domain.ShiftEvening, domain.ShiftLateNight,
}

// ShiftOf buckets an hour of day.
func ShiftOf(t time.Time) domain.Shift {
	switch h := t.Hour(); {
	case h >= 6 && h < 12:
		return domain.ShiftMorning
	case h >= 12 && h < 18:
		return domain.ShiftAfternoon
	case h >= 18:
		return domain.ShiftEvening
	}
	return domain.ShiftLateNight
}

// ChurnTier compares recency with the customer's own cadence. The floors of
// 30 and 15 days keep very short intervals from flagging everyone.
func ChurnTier(recencyDays int, intervalDays float64) domain.ChurnRisk {
	r := float64(recencyDays)
	switch {
	case r > math.Max(intervalDays*2, 30):
		return domain.ChurnHigh
	case r > math.Max(intervalDays*1.5, 15):
		return domain.ChurnMedium
	}
	return domain.ChurnLow
}

// daysBetween counts whole days from a to b, never negative.
func daysBetween(a, b time.Time) int {
	d := b.Sub(a)
	if d <= 0 {
		return 0
	}
	return int(d / day)
}

// Dataset is an indexed, read-only view over a sale history grouped by
// customer identity. Once built, Profile may be called concurrently.
type Dataset struct {
	opts     Options
	today    time.Time
	counter  cycleCounter
	groups   map[string][]domain.Sale
	keys     []string
	registry registryIndex
	skipped  int
}

// NewDataset validates and groups sales. Records without a timestamp or with a
// non-finite value are skipped and counted. Walk-in sales feed the price
// statistics and "today" but produce no profile.
//
// Identity is the normalized name, except that a sale linked to a registry
// record by id is keyed by the registry name, which folds spelling variants of
// the same registered customer together.
func NewDataset(sales []domain.Sale, registry []domain.Customer, opts Options) *Dataset {
	opts = opts.withDefaults()
	d := &Dataset{
		opts:     opts,
		groups:   make(map[string][]domain.Sale),
		registry: newRegistryIndex(registry),
	}

	valid := make([]domain.Sale, 0, len(sales))
	for _, s := range sales {
		if s.Date.IsZero() || !validValue(s.Value) {
			d.skipped++
			continue
		}
		valid = append(valid, s)
		if s.Date.After(d.today) {
			d.today = s.Date
		}
	}
	d.counter = cycleCounter{
		classifier: DefaultClassifier(opts.ParityStores),
		prices:     NewPriceReference(valid, opts),
	}

	for _, s := range valid {
		key := d.registry.identity(s)
		if key == "" {
			continue
		}
		d.groups[key] = append(d.groups[key], s)
	}
	for key, list := range d.groups {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Date.Before(list[j].Date) })
		d.keys = append(d.keys, key)
	}
	sort.Strings(d.keys)
	return d
}

// Today is the latest valid timestamp in the dataset.
func (d *Dataset) Today() time.Time { return d.today }

// Keys lists customer identities in sorted order.
func (d *Dataset) Keys() []string { return d.keys }

// Skipped is the number of malformed records ignored.
func (d *Dataset) Skipped() int { return d.skipped }

// Options returns the effective options.
func (d *Dataset) Options() Options { return d.opts }

type slotKey struct {
	day   time.Weekday
	shift domain.Shift
}

// Profile builds the all-time profile of one identity.
func (d *Dataset) Profile(key string) (domain.CustomerProfile, domain.Diagnostics, bool) {
	sales, ok := d.groups[key]
	if !ok || len(sales) == 0 {
		return domain.CustomerProfile{}, domain.Diagnostics{}, false
	}
	diag := newDiagnostics(d.opts.DiagnosticsCap)

	p := domain.CustomerProfile{
		Key:               key,
		TotalTransactions: len(sales),
		TopSlots:          []domain.SlotCount{},
		LastVisits:        []domain.VisitSummary{},
	}

	entries := make([]Entry, 0, len(sales))
	dayCounts := make(map[time.Weekday]int)
	shiftCounts := make(map[domain.Shift]int)
	slotCounts := make(map[slotKey]int)
	storeCounts := make(map[string]int)
	storeNames := make(map[string]string)
	var linked *domain.Customer

	for _, s := range sales {
		c := d.counter.Count(s)
		p.TotalSpent += s.Value
		p.TotalWashes += c.Washes
		p.TotalDries += c.Dries
		p.TotalCycles += c.Cycles
		if c.Approximate {
			p.ApproximateBaskets = true
			diag.d.ApproximateSales++
		}
		if c.Unclassified {
			diag.unclassified(s)
		}
		entries = append(entries, Entry{Ref: s.ID, Time: s.Date, Value: s.Value, Washes: c.Washes, Dries: c.Dries})

		dayCounts[s.Date.Weekday()]++
		shift := ShiftOf(s.Date)
		shiftCounts[shift]++
		slotCounts[slotKey{s.Date.Weekday(), shift}]++
		if store := NormalizeName(s.Store); store != "" {
			storeCounts[store]++
			if _, ok := storeNames[store]; !ok {
				storeNames[store] = strings.TrimSpace(s.Store)
			}
		}

		if name := strings.Join(strings.Fields(s.CustomerName), " "); name != "" {
			p.Name = name
		}
		if s.CustomerPhone != "" {
			p.Phone = s.CustomerPhone
		}
		if s.CustomerID != "" && linked == nil {
			if reg, ok := d.registry.byID[s.CustomerID]; ok {
				linked = &reg
			}
		}
	}
	p.TotalBaskets = p.TotalWashes + p.TotalDries

	visits := SegmentVisits(entries, d.opts.VisitWindow)
	p.TotalVisits = len(visits)
	if p.TotalVisits > 0 {
		p.AverageTicket = p.TotalSpent / float64(p.TotalVisits)
	}

	first, last := sales[0].Date, sales[len(sales)-1].Date
	p.FirstVisit = first
	p.LastVisit = last
	p.RecencyDays = daysBetween(last, d.today)

	// span ends at the last visit, not at today
	p.AverageIntervalDays = d.opts.DefaultIntervalDays
	if p.TotalVisits > 1 {
		span := last.Sub(first).Hours() / 24
		p.AverageIntervalDays = span / float64(p.TotalVisits-1)
	}
	p.ChurnRisk = ChurnTier(p.RecencyDays, p.AverageIntervalDays)
	p.NextVisitPrediction = last.AddDate(0, 0, int(math.Ceil(p.AverageIntervalDays)))

	p.TopDay, p.TopShift, p.TopSlots = preferences(dayCounts, shiftCounts, slotCounts)
	p.PreferredStore = topStore(storeCounts, storeNames)

	for i := len(visits) - 1; i >= 0 && len(p.LastVisits) < d.opts.LastVisitsCount; i-- {
		v := visits[i]
		p.LastVisits = append(p.LastVisits, domain.VisitSummary{
			Start:        v.Start,
			Value:        v.Value,
			Washes:       v.Washes,
			Dries:        v.Dries,
			Transactions: len(v.Members),
		})
	}

	if linked == nil {
		if reg, ok := d.registry.byName[key]; ok {
			linked = &reg
		}
	}
	d.applyRegistry(&p, linked, sales)

	return p, diag.result(), true
}

// applyRegistry copies authoritative registry fields over heuristics.
func (d *Dataset) applyRegistry(p *domain.CustomerProfile, reg *domain.Customer, sales []domain.Sale) {
	if reg != nil {
		p.RegistryID = reg.ID
		if name := strings.TrimSpace(reg.Name); name != "" {
			p.Name = name
		}
		if reg.Phone != "" {
			p.Phone = reg.Phone
		}
		p.CPF = reg.CPF
		p.Email = reg.Email
		if reg.Gender != "" {
			p.Gender = reg.Gender
			p.GenderSource = domain.GenderSourceRegistry
		}
		if reg.RegisteredAt != nil {
			at := *reg.RegisteredAt
			p.RegisteredAt = &at
			if at.Before(p.FirstVisit) {
				p.FirstVisit = at
			}
		}
		if reg.BirthDate != nil {
			age := ageAt(*reg.BirthDate, d.today)
			p.Age = &age
		}
	}
	if p.Gender == "" {
		if g := InferGender(p.Name); g != "" {
			p.Gender = g
			p.GenderSource = domain.GenderSourceInferred
		}
	}
	if p.Age == nil {
		for i := len(sales) - 1; i >= 0; i-- {
			if sales[i].BirthDate != nil {
				age := ageAt(*sales[i].BirthDate, d.today)
				p.Age = &age
				break
			}
			if sales[i].Age != nil {
				age := *sales[i].Age
				p.Age = &age
				break
			}
		}
	}
}

func preferences(days map[time.Weekday]int, shifts map[domain.Shift]int, slots map[slotKey]int) (*time.Weekday, domain.Shift, []domain.SlotCount) {
	var topDay *time.Weekday
	best := 0
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if days[wd] > best {
			w := wd
			topDay, best = &w, days[wd]
		}
	}

	var topShift domain.Shift
	best = 0
	for _, s := range shiftOrder {
		if shifts[s] > best {
			topShift, best = s, shifts[s]
		}
	}

	rank := make(map[domain.Shift]int, len(shiftOrder))
	for i, s := range shiftOrder {
		rank[s] = i
	}
	list := make([]domain.SlotCount, 0, len(slots))
	for k, n := range slots {
		list = append(list, domain.SlotCount{Day: k.day, Shift: k.shift, Count: n})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Count != list[j].Count {
			return list[i].Count > list[j].Count
		}
		if list[i].Day != list[j].Day {
			return list[i].Day < list[j].Day
		}
		return rank[list[i].Shift] < rank[list[j].Shift]
	})
	if len(list) > 3 {
		list = list[:3]
	}
	return topDay, topShift, list
}

func topStore(counts map[string]int, names map[string]string) string {
	bestKey, best := "", 0
	for k, n := range counts {
		if n > best || (n == best && k < bestKey) {
			bestKey, best = k, n
		}
	}
	return names[bestKey]
}

// Summarize aggregates profiles. today is the dataset's latest timestamp.
func Summarize(profiles []domain.CustomerProfile, today time.Time) domain.CrmSummary {
	s := domain.CrmSummary{
		Today:          today,
		TotalCustomers: len(profiles),
		ChurnCounts: map[domain.ChurnRisk]int{
			domain.ChurnLow:    0,
			domain.ChurnMedium: 0,
			domain.ChurnHigh:   0,
		},
	}
	for _, p := range profiles {
		s.ChurnCounts[p.ChurnRisk]++
		s.TotalRevenue += p.TotalSpent
		s.TotalVisits += p.TotalVisits
		s.TotalWashes += p.TotalWashes
		s.TotalDries += p.TotalDries

		age := daysBetween(p.FirstVisit, today)
		recurring := p.TotalVisits >= 2
		tally := func(limit int, active, isNew, rec *int) {
			if p.RecencyDays <= limit {
				*active++
				if recurring {
					*rec++
				}
			}
			if age <= limit {
				*isNew++
			}
		}
		tally(30, &s.Active.Days30, &s.New.Days30, &s.Recurring.Days30)
		tally(60, &s.Active.Days60, &s.New.Days60, &s.Recurring.Days60)
		tally(90, &s.Active.Days90, &s.New.Days90, &s.Recurring.Days90)
	}
	if s.TotalVisits > 0 {
		s.AverageTicket = s.TotalRevenue / float64(s.TotalVisits)
	}
	if s.TotalWashes > 0 {
		s.ConversionRatePct = float64(s.TotalDries) / float64(s.TotalWashes) * 100
	}
	return s
}

// ProfileReport is the complete output of a CRM build.
type ProfileReport struct {
	Profiles    []domain.CustomerProfile
	Summary     domain.CrmSummary
	Diagnostics domain.Diagnostics
}

// BuildProfiles runs the whole CRM build sequentially. Callers that want to
// shard by customer can use NewDataset + Profile + Summarize directly.
func BuildProfiles(sales []domain.Sale, registry []domain.Customer, opts Options) ProfileReport {
	ds := NewDataset(sales, registry, opts)
	profiles := make([]domain.CustomerProfile, 0, len(ds.Keys()))
	diags := make([]domain.Diagnostics, 0, len(ds.Keys())+1)
	for _, key := range ds.Keys() {
		p, dg, ok := ds.Profile(key)
		if !ok {
			continue
		}
		profiles = append(profiles, p)
		diags = append(diags, dg)
	}
	diags = append(diags, domain.Diagnostics{SkippedRecords: ds.Skipped()})
	return ProfileReport{
		Profiles:    profiles,
		Summary:     Summarize(profiles, ds.Today()),
		Diagnostics: MergeDiagnostics(ds.Options().DiagnosticsCap, diags...),
	}
}
