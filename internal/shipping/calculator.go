package shipping

import (
	"errors"
	"sort"
	"strings"
)

// Calculation methods supported by a store's shipping configuration.
const (
	MethodFixed         = "fixed"
	MethodRegionalTable = "regional_table"
	MethodWeightBased   = "weight_based"
	MethodFree          = "free"
)

// Well-known option identifiers for synthetic options.
const (
	OptionFree   = "free"
	OptionFixed  = "fixed"
	OptionPickup = "pickup"
)

// ErrUnavailable is returned when no shipping option resolves for the
// destination. Checkout must block on it rather than default to zero cost.
var ErrUnavailable = errors.New("no shipping available for this destination")

// Region is one row of the regional price table.
type Region struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	StateCodes       []string `json:"stateCodes"`
	Price            int64    `json:"price"`
	DeliveryEstimate string   `json:"deliveryEstimate"`
}

// WeightRate is one band of the weight-based price table. Weights are grams.
type WeightRate struct {
	ID        string `json:"id"`
	MinWeight int64  `json:"minWeight"`
	MaxWeight int64  `json:"maxWeight"`
	Price     int64  `json:"price"`
}

// Settings is a store's shipping configuration.
type Settings struct {
	Enabled               bool         `json:"enabled"`
	PickupEnabled         bool         `json:"pickupEnabled"`
	PickupMessage         string       `json:"pickupMessage,omitempty"`
	FreeShippingThreshold *int64       `json:"freeShippingThreshold,omitempty"`
	CalculationMethod     string       `json:"calculationMethod"`
	FixedPrice            int64        `json:"fixedPrice"`
	Regions               []Region     `json:"regions,omitempty"`
	WeightRates           []WeightRate `json:"weightRates,omitempty"`
}

// Option is a single quoted shipping choice.
type Option struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Price            int64  `json:"price"`
	DeliveryEstimate string `json:"deliveryEstimate,omitempty"`
	Description      string `json:"description,omitempty"`
}

// Calculate resolves the ranked list of shipping options for a cart. Region
// and weight are optional depending on the configured method. The returned
// slice is sorted cheapest first; ErrUnavailable is returned when nothing,
// pickup included, can serve the destination.
func Calculate(s Settings, subtotal int64, region *string, totalWeight *int64) ([]Option, error) {
	if !s.Enabled {
		return nil, ErrUnavailable
	}
	var options []Option

	freeByThreshold := s.FreeShippingThreshold != nil && subtotal >= *s.FreeShippingThreshold
	if freeByThreshold {
		options = append(options, Option{ID: OptionFree, Name: "Frete grátis", Price: 0})
	}

	switch s.CalculationMethod {
	case MethodFixed:
		options = append(options, Option{ID: OptionFixed, Name: "Entrega padrão", Price: s.FixedPrice})
	case MethodRegionalTable:
		if match, ok := matchRegion(s.Regions, region); ok {
			options = append(options, Option{
				ID:               match.ID,
				Name:             match.Name,
				Price:            match.Price,
				DeliveryEstimate: match.DeliveryEstimate,
			})
		} else if s.FixedPrice > 0 {
			options = append(options, Option{ID: OptionFixed, Name: "Entrega padrão", Price: s.FixedPrice})
		}
	case MethodWeightBased:
		if rate, ok := matchWeight(s.WeightRates, totalWeight); ok {
			options = append(options, Option{ID: rate.ID, Name: "Entrega por peso", Price: rate.Price})
		}
	case MethodFree:
		if !freeByThreshold {
			options = append(options, Option{ID: OptionFree, Name: "Frete grátis", Price: 0})
		}
	}

	if s.PickupEnabled {
		options = append(options, Option{
			ID:               OptionPickup,
			Name:             "Retirada na loja",
			Price:            0,
			DeliveryEstimate: "imediato",
			Description:      s.PickupMessage,
		})
	}

	if len(options) == 0 {
		return nil, ErrUnavailable
	}
	sort.SliceStable(options, func(i, j int) bool { return options[i].Price < options[j].Price })
	return options, nil
}

func matchRegion(regions []Region, destination *string) (Region, bool) {
	if destination == nil {
		return Region{}, false
	}
	dest := strings.ToUpper(strings.TrimSpace(*destination))
	if dest == "" {
		return Region{}, false
	}
	for _, region := range regions {
		for _, code := range region.StateCodes {
			if strings.ToUpper(strings.TrimSpace(code)) == dest {
				return region, true
			}
		}
	}
	return Region{}, false
}

func matchWeight(rates []WeightRate, totalWeight *int64) (WeightRate, bool) {
	if totalWeight == nil {
		return WeightRate{}, false
	}
	w := *totalWeight
	for _, rate := range rates {
		if w >= rate.MinWeight && w <= rate.MaxWeight {
			return rate, true
		}
	}
	return WeightRate{}, false
}

// ValidateSettings rejects configurations that would make quoting ambiguous
// or impossible, in particular overlapping weight bands.
func ValidateSettings(s Settings) error {
	switch s.CalculationMethod {
	case MethodFixed, MethodRegionalTable, MethodWeightBased, MethodFree:
	default:
		return errors.New("unknown calculation method: " + s.CalculationMethod)
	}
	if s.FreeShippingThreshold != nil && *s.FreeShippingThreshold < 0 {
		return errors.New("free shipping threshold must not be negative")
	}
	if s.FixedPrice < 0 {
		return errors.New("fixed price must not be negative")
	}
	for _, region := range s.Regions {
		if region.Price < 0 {
			return errors.New("region price must not be negative")
		}
		if len(region.StateCodes) == 0 {
			return errors.New("region " + region.Name + " has no state codes")
		}
	}
	rates := make([]WeightRate, len(s.WeightRates))
	copy(rates, s.WeightRates)
	sort.Slice(rates, func(i, j int) bool { return rates[i].MinWeight < rates[j].MinWeight })
	for i, rate := range rates {
		if rate.MinWeight < 0 || rate.MaxWeight < rate.MinWeight {
			return errors.New("invalid weight band bounds")
		}
		if rate.Price < 0 {
			return errors.New("weight band price must not be negative")
		}
		if i > 0 && rate.MinWeight <= rates[i-1].MaxWeight {
			return errors.New("weight bands overlap")
		}
	}
	return nil
}
