package engine

import (
	"sort"
	"strings"
	"time"

	"github.com/boddenberg/lavanderia-crm-go/internal/domain"
)

// tagPriority picks the diagnostic tag of an unclassified customer.
var tagPriority = []string{
	domain.TagUnknownMachine,
	domain.TagNoMachineLink,
	domain.TagLowValue,
	domain.TagProductSale,
}

// FilterPeriod keeps the sales inside period.
func FilterPeriod(sales []domain.Sale, period domain.Period) []domain.Sale {
	out := make([]domain.Sale, 0, len(sales))
	for _, s := range sales {
		if period.Contains(s.Date) {
			out = append(out, s)
		}
	}
	return out
}

type periodCustomer struct {
	name      string
	phone     string
	washes    int
	dries     int
	spent     float64
	dates     map[string]struct{}
	first     time.Time
	last      time.Time
	tags      map[string]struct{}
	lastNamed time.Time
}

// SegmentPeriod classifies the customers active in a period by usage pattern
// and splits them into new and returning.
//
// Visits here are distinct calendar dates with activity, coarser than
// SegmentVisits on purpose. A customer is new when history holds no purchase
// before their first in-period purchase, or the latest one is more than
// NewCustomerLookbackDays older. Walk-in sales count toward revenue and
// visits (one visit each) but belong to no segment. Customers are keyed the
// same way as profiles, so registry-linked spelling variants count as one.
func SegmentPeriod(period domain.Period, periodSales, history []domain.Sale, registry []domain.Customer, opts Options) domain.PeriodStats {
	opts = opts.withDefaults()
	stats := domain.PeriodStats{
		Period: period,
		Segments: map[domain.Segment]domain.SegmentGroup{
			domain.SegmentOnlyWash:     {Customers: []domain.SegmentedCustomer{}},
			domain.SegmentOnlyDry:      {Customers: []domain.SegmentedCustomer{}},
			domain.SegmentWashAndDry:   {Customers: []domain.SegmentedCustomer{}},
			domain.SegmentUnclassified: {Customers: []domain.SegmentedCustomer{}},
		},
	}
	diag := newDiagnostics(opts.DiagnosticsCap)
	bounded := period.End.After(period.Start)

	priceBase := history
	if len(priceBase) == 0 {
		priceBase = periodSales
	}
	counter := cycleCounter{
		classifier: DefaultClassifier(opts.ParityStores),
		prices:     NewPriceReference(priceBase, opts),
	}

	index := newRegistryIndex(registry)

	// prior purchase times per identity, sorted
	prior := make(map[string][]time.Time)
	for _, s := range history {
		if s.Date.IsZero() || !validValue(s.Value) {
			continue
		}
		key := index.identity(s)
		if key == "" {
			continue
		}
		prior[key] = append(prior[key], s.Date)
	}
	for _, times := range prior {
		sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	}

	customers := make(map[string]*periodCustomer)
	var customerRevenue float64
	for _, s := range periodSales {
		if s.Date.IsZero() || !validValue(s.Value) {
			diag.d.SkippedRecords++
			continue
		}
		if bounded && !period.Contains(s.Date) {
			continue
		}
		stats.Revenue += s.Value

		c := counter.Count(s)
		if c.Approximate {
			diag.d.ApproximateSales++
		}
		if c.Unclassified {
			diag.unclassified(s)
		}

		key := index.identity(s)
		if key == "" {
			stats.Visits++
			stats.TotalWashes += c.Washes
			stats.TotalDries += c.Dries
			continue
		}
		customerRevenue += s.Value

		pc, ok := customers[key]
		if !ok {
			pc = &periodCustomer{
				dates: make(map[string]struct{}),
				tags:  make(map[string]struct{}),
				first: s.Date,
			}
			customers[key] = pc
		}
		pc.washes += c.Washes
		pc.dries += c.Dries
		pc.spent += s.Value
		pc.dates[dayKey(s.Date)] = struct{}{}
		if c.Tag != "" {
			pc.tags[c.Tag] = struct{}{}
		}
		if s.Date.Before(pc.first) {
			pc.first = s.Date
		}
		if !s.Date.Before(pc.last) {
			pc.last = s.Date
		}
		if !s.Date.Before(pc.lastNamed) {
			pc.lastNamed = s.Date
			pc.name = strings.Join(strings.Fields(s.CustomerName), " ")
			if s.CustomerPhone != "" {
				pc.phone = s.CustomerPhone
			}
		} else if pc.phone == "" && s.CustomerPhone != "" {
			pc.phone = s.CustomerPhone
		}
	}

	keys := make([]string, 0, len(customers))
	for k := range customers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lookback := time.Duration(opts.NewCustomerLookbackDays) * day
	for _, key := range keys {
		pc := customers[key]
		sc := domain.SegmentedCustomer{
			Name:      pc.name,
			Phone:     pc.phone,
			Washes:    pc.washes,
			Dries:     pc.dries,
			Spent:     pc.spent,
			Visits:    len(pc.dates),
			LastVisit: pc.last,
		}
		sc.IsNew = isNewCustomer(prior[key], pc.first, lookback)
		if sc.IsNew {
			stats.NewCustomers++
		} else {
			stats.ReturningCustomers++
		}

		var seg domain.Segment
		switch {
		case pc.washes > 0 && pc.dries == 0:
			seg = domain.SegmentOnlyWash
		case pc.dries > 0 && pc.washes == 0:
			seg = domain.SegmentOnlyDry
		case pc.washes > 0 && pc.dries > 0:
			seg = domain.SegmentWashAndDry
			sc.Balanced = pc.washes == pc.dries
			if sc.Balanced {
				stats.BalancedCustomers++
			}
		default:
			seg = domain.SegmentUnclassified
			sc.DebugTag = pickTag(pc.tags)
		}
		g := stats.Segments[seg]
		g.Customers = append(g.Customers, sc)
		g.Count++
		stats.Segments[seg] = g

		stats.ActiveCustomers++
		stats.Visits += sc.Visits
		stats.TotalWashes += pc.washes
		stats.TotalDries += pc.dries
	}

	for seg, g := range stats.Segments {
		sort.SliceStable(g.Customers, func(i, j int) bool {
			if g.Customers[i].Spent != g.Customers[j].Spent {
				return g.Customers[i].Spent > g.Customers[j].Spent
			}
			return g.Customers[i].Name < g.Customers[j].Name
		})
		stats.Segments[seg] = g
	}

	if stats.Visits > 0 {
		stats.AverageTicket = stats.Revenue / float64(stats.Visits)
	}
	if stats.ActiveCustomers > 0 {
		stats.AverageLTV = customerRevenue / float64(stats.ActiveCustomers)
	}
	stats.Diagnostics = diag.result()
	return stats
}

func isNewCustomer(history []time.Time, firstInPeriod time.Time, lookback time.Duration) bool {
	i := sort.Search(len(history), func(i int) bool { return !history[i].Before(firstInPeriod) })
	if i == 0 {
		return true
	}
	return firstInPeriod.Sub(history[i-1]) > lookback
}

func pickTag(tags map[string]struct{}) string {
	for _, t := range tagPriority {
		if _, ok := tags[t]; ok {
			return t
		}
	}
	return domain.TagNoMachineLink
}
