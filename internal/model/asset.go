package model

import (
	"fmt"
	"strings"
	"sync"
	"time"
	_ "time/tzdata" // archive layout must not depend on the host zoneinfo
)

// AssetClass is the instrument family a symbol belongs to.
type AssetClass string

const (
	Equity   AssetClass = "equity"
	Option   AssetClass = "option"
	Future   AssetClass = "future"
	Forex    AssetClass = "forex"
	Crypto   AssetClass = "crypto"
	CFD      AssetClass = "cfd"
	Index    AssetClass = "index"
	Bond     AssetClass = "bond"
	Economic AssetClass = "economic"
)

// AssetClasses lists every known class in display order.
var AssetClasses = []AssetClass{Equity, Option, Future, Forex, Crypto, CFD, Index, Bond, Economic}

// ParseAssetClass accepts the class name in any case.
func ParseAssetClass(s string) (AssetClass, error) {
	c := AssetClass(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := profiles[c]; ok {
		return c, nil
	}
	return "", fmt.Errorf("unknown asset class %q", s)
}

// Profile describes how records of an asset class are localized and emitted.
type Profile struct {
	Timezone    string
	PriceScale  int64 // 0: prices are written as floats
	FloatVolume bool
}

// ScaledPrices reports whether prices are emitted as scaled integers.
func (p Profile) ScaledPrices() bool { return p.PriceScale > 0 }

var profiles = map[AssetClass]Profile{
	Equity:   {Timezone: "America/New_York", PriceScale: 10000},
	Option:   {Timezone: "America/New_York", PriceScale: 10000},
	Index:    {Timezone: "America/New_York", PriceScale: 10000},
	Future:   {Timezone: "America/New_York", PriceScale: 10000},
	Crypto:   {Timezone: "UTC", FloatVolume: true},
	Forex:    {Timezone: "UTC"},
	CFD:      {Timezone: "UTC"},
	Bond:     {Timezone: "America/New_York"},
	Economic: {Timezone: "America/New_York"},
}

// Exchange-local venues override the class timezone.
var venueTimezones = map[string]string{
	"nse": "Asia/Kolkata",
	"bse": "Asia/Kolkata",
}

// ProfileOf returns the emission profile for c. Unknown classes get the equity profile.
func ProfileOf(c AssetClass) Profile {
	if p, ok := profiles[c]; ok {
		return p
	}
	return profiles[Equity]
}

var (
	locMu    sync.Mutex
	locCache = map[string]*time.Location{}
)

// LoadLocation caches time.LoadLocation results. It panics on an unknown zone name
// because every name it is called with comes from the tables in this package.
func LoadLocation(name string) *time.Location {
	locMu.Lock()
	defer locMu.Unlock()
	if loc, ok := locCache[name]; ok {
		return loc
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("model: load location %q: %v", name, err))
	}
	locCache[name] = loc
	return loc
}

// Symbol identifies an instrument: (ticker, asset class, venue).
// Venue is the path component under the class root: the vendor tag for most
// sources, the exchange for futures.
type Symbol struct {
	Ticker string     `json:"ticker"`
	Class  AssetClass `json:"asset_class"`
	Venue  string     `json:"venue"`
}

func (s Symbol) String() string {
	return fmt.Sprintf("%s:%s:%s", s.Class, s.Venue, s.Ticker)
}

// FileName is the on-disk name of the symbol.
func (s Symbol) FileName() string {
	return strings.ToLower(s.Ticker)
}

// Timezone returns the zone name records of s are localized to.
func (s Symbol) Timezone() string {
	if tz, ok := venueTimezones[strings.ToLower(s.Venue)]; ok {
		return tz
	}
	return ProfileOf(s.Class).Timezone
}

// Location returns the loaded zone of s.
func (s Symbol) Location() *time.Location {
	return LoadLocation(s.Timezone())
}
