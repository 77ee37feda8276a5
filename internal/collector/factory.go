package collector

import (
	"fmt"

	"ForexFeed/internal/config"
	"ForexFeed/internal/model"
	"ForexFeed/internal/quota"
)

// NewFetchers builds the enabled sources of cfg and registers their quota
// limits with counter.
func NewFetchers(cfg *config.Config, counter *quota.Counter) ([]Fetcher, error) {
	timeout := cfg.Provider.RequestTimeout
	var out []Fetcher
	for _, sc := range cfg.Sources {
		if !sc.EnabledValue() {
			continue
		}
		desc := model.SourceDescriptor{
			Name:     sc.Name,
			Priority: sc.Priority,
			Limits:   sc.Limits,
		}

		var f Fetcher
		switch sc.Name {
		case "twelvedata":
			td := NewTwelveDataFetcher(desc, sc.APIKey, timeout, cfg.Proxy)
			if sc.BaseURL != "" {
				td.BaseURL = sc.BaseURL
			}
			f = td
		case "alphavantage":
			av := NewAlphaVantageFetcher(desc, sc.APIKey, timeout, cfg.Proxy)
			if sc.BaseURL != "" {
				av.BaseURL = sc.BaseURL
			}
			f = av
		case "yahoo":
			y := NewYahooFetcher(desc, timeout, cfg.Proxy)
			if sc.BaseURL != "" {
				y.BaseURL = sc.BaseURL
			}
			f = y
		case "stooq":
			s := NewStooqFetcher(desc, timeout, cfg.Proxy)
			if sc.BaseURL != "" {
				s.BaseURL = sc.BaseURL
			}
			f = s
		default:
			// Any other name is a generic JSON source described by its field mapping.
			f = NewRESTFetcher(desc, sc.BaseURL, sc.APIKey, mappingFromConfig(sc.Fields), timeout, cfg.Proxy)
		}

		if err := counter.Register(sc.Name, sc.Limits); err != nil {
			return nil, fmt.Errorf("register quota: %w", err)
		}
		out = append(out, f)
	}
	return out, nil
}

func mappingFromConfig(m config.FieldMapping) RESTMapping {
	return RESTMapping{
		Items:      m.Items,
		Time:       m.Time,
		TimeUnit:   m.TimeUnit,
		Open:       m.Open,
		High:       m.High,
		Low:        m.Low,
		Close:      m.Close,
		Volume:     m.Volume,
		PairParam:  m.PairParam,
		TFParam:    m.TFParam,
		CountParam: m.CountParam,
	}
}

// NewFromConfig wires a Collector from configuration.
func NewFromConfig(cfg *config.Config, counter *quota.Counter, options ...Option) (*Collector, error) {
	if counter == nil {
		counter = quota.NewCounter()
	}
	fetchers, err := NewFetchers(cfg, counter)
	if err != nil {
		return nil, err
	}
	pairs := make([]model.Pair, 0, len(cfg.Pairs))
	for _, s := range cfg.Pairs {
		p, err := model.ParsePair(s)
		if err != nil {
			return nil, fmt.Errorf("pairs: %w", err)
		}
		pairs = append(pairs, p)
	}
	opts := Options{
		MaxCount:         cfg.Provider.MaxCount,
		RequestTimeout:   cfg.Provider.RequestTimeout,
		SynthesisEnabled: cfg.Provider.SynthesisEnabledValue(),
		CacheTTL:         cfg.Provider.CacheTTL,
		Pairs:            pairs,
	}
	return NewCollector(fetchers, counter, opts, options...), nil
}
