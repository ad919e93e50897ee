package model

// Package is a purchasable booth pass. Checkout metadata must round-trip
// these fields exactly into the created access code.
type Package struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	DurationSeconds int      `json:"duration"`
	PriceCents      int64    `json:"price"`
	EmailLimit      int      `json:"emailLimit"`
	HasDesignStudio bool     `json:"hasDesignStudio"`
	Features        []string `json:"features"`
	MostPopular     bool     `json:"isMostPopular,omitempty"`
}

var Packages = []Package{
	{
		ID:              "starter_1hr",
		Name:            "Starter",
		DurationSeconds: 1 * 60 * 60,
		PriceCents:      1900,
		EmailLimit:      150,
		HasDesignStudio: false,
		Features:        []string{"1 Hour Session", "Unlimited Photos", "Standard Filters", "150 Email Sends"},
	},
	{
		ID:              "pro_4hr",
		Name:            "Pro",
		DurationSeconds: 4 * 60 * 60,
		PriceCents:      4900,
		EmailLimit:      500,
		HasDesignStudio: true,
		Features:        []string{"4 Hour Session", "All Starter Features", "500 Email Sends", "Photo Design Studio"},
		MostPopular:     true,
	},
	{
		ID:              "ultimate_day",
		Name:            "Ultimate",
		DurationSeconds: 24 * 60 * 60,
		PriceCents:      9900,
		EmailLimit:      1000,
		HasDesignStudio: true,
		Features:        []string{"All Day Session", "All Pro Features", "1000 Email Sends", "Edit Design Anytime"},
	},
}

// PackageByID looks up a catalog entry.
func PackageByID(id string) (*Package, bool) {
	for i := range Packages {
		if Packages[i].ID == id {
			return &Packages[i], true
		}
	}
	return nil, false
}
