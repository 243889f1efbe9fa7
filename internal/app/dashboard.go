package app

import (
	"sync"
	"time"

	"github.com/deusflow/macrotracker/internal/bias"
	"github.com/deusflow/macrotracker/internal/macro"
	"github.com/deusflow/macrotracker/internal/news"
)

// View is a consistent copy of everything the dashboard shows.
type View struct {
	Macro     macro.Outcome        `json:"macro"`
	Bias      *bias.Result         `json:"bias,omitempty"`
	News      news.Feed            `json:"news"`
	Fred      *macro.FredReading   `json:"fred,omitempty"`
	Market    *macro.MarketReading `json:"market,omitempty"`
	Jobs      *macro.JobsReading   `json:"jobs,omitempty"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// Dashboard holds the latest state. Every update swaps in a new View, so
// readers never see a half-applied refresh.
type Dashboard struct {
	mu   sync.RWMutex
	view View
	now  func() time.Time
}

func NewDashboard() *Dashboard {
	return &Dashboard{now: time.Now}
}

func (d *Dashboard) View() View {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.view
}

func (d *Dashboard) update(fn func(v *View)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	next := d.view
	fn(&next)
	next.UpdatedAt = d.now()
	d.view = next
}

// setOutcome stores a combined query result. A failed outcome clears the
// bias since there is no snapshot it could describe.
func (d *Dashboard) setOutcome(o macro.Outcome, b *bias.Result) {
	d.update(func(v *View) {
		v.Macro = o
		v.Bias = b
	})
}

func (d *Dashboard) setFeed(f news.Feed) {
	d.update(func(v *View) { v.News = f })
}

func (d *Dashboard) setFred(r macro.FredReading) {
	d.update(func(v *View) { v.Fred = &r })
}

func (d *Dashboard) setMarket(r macro.MarketReading) {
	d.update(func(v *View) { v.Market = &r })
}

func (d *Dashboard) setJobs(r macro.JobsReading) {
	d.update(func(v *View) { v.Jobs = &r })
}
