// Package macro merges independently sourced indicator readings into one
// snapshot.
package macro

import (
	"encoding/json"
	"time"
)

// Value is an optional indicator reading. The zero Value is absent.
type Value struct {
	v  float64
	ok bool
}

// Some returns a present Value.
func Some(v float64) Value { return Value{v: v, ok: true} }

// None returns an absent Value.
func None() Value { return Value{} }

// FromPtr converts a nullable number into a Value.
func FromPtr(p *float64) Value {
	if p == nil {
		return None()
	}
	return Some(*p)
}

// Get returns the number and whether it is present.
func (v Value) Get() (float64, bool) { return v.v, v.ok }

// Present reports whether the value was observed.
func (v Value) Present() bool { return v.ok }

// Less reports whether the value is present and below x. An absent value
// fails every comparison.
func (v Value) Less(x float64) bool { return v.ok && v.v < x }

// Greater reports whether the value is present and above x.
func (v Value) Greater(x float64) bool { return v.ok && v.v > x }

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.ok {
		return []byte("null"), nil
	}
	return json.Marshal(v.v)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var p *float64
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*v = FromPtr(p)
	return nil
}

// Snapshot is one merged reading of every tracked indicator. A new snapshot
// replaces the previous one wholesale.
type Snapshot struct {
	CPI             Value     `json:"cpi"`
	DollarIndex     Value     `json:"dxy"`
	GoldPrice       Value     `json:"gold"`
	TenYearYield    Value     `json:"yields10y"`
	FedRate         Value     `json:"fedRate"`
	NonfarmPayrolls Value     `json:"nfp"`
	LastUpdated     time.Time `json:"lastUpdated"`
}

// FredReading is the latest observation of the FRED series.
type FredReading struct {
	CPI          Value     `json:"cpi"`
	TenYearYield Value     `json:"yields10y"`
	FedRate      Value     `json:"fedRate"`
	ObservedOn   string    `json:"observedOn,omitempty"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

// MarketReading holds the last market prices.
type MarketReading struct {
	GoldPrice   Value     `json:"gold"`
	DollarIndex Value     `json:"dxy"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// JobsReading is the latest monthly payrolls level.
type JobsReading struct {
	NonfarmPayrolls Value     `json:"nfp"`
	Period          string    `json:"period,omitempty"`
	Year            string    `json:"year,omitempty"`
	LastUpdated     time.Time `json:"lastUpdated"`
}

// ReleaseReading combines the slow-changing FRED and BLS sources.
type ReleaseReading struct {
	FredReading
	Jobs JobsReading `json:"jobs"`
}

// Merge builds a snapshot from one reading of every source.
func Merge(f FredReading, m MarketReading, j JobsReading, at time.Time) Snapshot {
	return Snapshot{
		CPI:             f.CPI,
		TenYearYield:    f.TenYearYield,
		FedRate:         f.FedRate,
		GoldPrice:       m.GoldPrice,
		DollarIndex:     m.DollarIndex,
		NonfarmPayrolls: j.NonfarmPayrolls,
		LastUpdated:     at,
	}
}
