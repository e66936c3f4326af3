package billing

import "time"

type PriceIDs struct {
	Test       string `json:"test"`
	Production string `json:"production"`
}

type Plan struct {
	Name          string   `json:"name"`
	Slug          string   `json:"slug"`
	Quota         int      `json:"quota"`
	PagesPerPDF   int      `json:"pagesPerPdf"`
	MaxFileSizeMB int      `json:"maxFileSizeMb"`
	Price         float64  `json:"price"`
	PriceIDs      PriceIDs `json:"priceIds"`
}

func (p Plan) PriceID(production bool) string {
	if production {
		return p.PriceIDs.Production
	}
	return p.PriceIDs.Test
}

func (p Plan) MaxFileSizeBytes() int64 {
	return int64(p.MaxFileSizeMB) << 20
}

var Plans = []Plan{
	{
		Name:          "Free",
		Slug:          "free",
		Quota:         10,
		PagesPerPDF:   5,
		MaxFileSizeMB: 4,
	},
	{
		Name:          "Pro",
		Slug:          "pro",
		Quota:         50,
		PagesPerPDF:   25,
		MaxFileSizeMB: 16,
		Price:         9.99,
		PriceIDs: PriceIDs{
			Test:       "price_1NzKGISHni2VRAceT7SdIW7n",
			Production: "price_1NxsCzSHni2VRAceTuIrNyD0",
		},
	},
}

func Free() Plan { return Plans[0] }
func Pro() Plan  { return Plans[1] }

func PlanByName(name string) (Plan, bool) {
	for _, p := range Plans {
		if p.Name == name {
			return p, true
		}
	}
	return Plan{}, false
}

// PlanByPriceID matches either environment's price id.
func PlanByPriceID(priceID string) (Plan, bool) {
	if priceID == "" {
		return Plan{}, false
	}
	for _, p := range Plans {
		if p.PriceIDs.Test == priceID || p.PriceIDs.Production == priceID {
			return p, true
		}
	}
	return Plan{}, false
}

// SubscriptionPlan is a caller's effective plan plus subscription state.
type SubscriptionPlan struct {
	Plan
	IsSubscribed           bool       `json:"isSubscribed"`
	IsCanceled             bool       `json:"isCanceled"`
	StripeCustomerID       string     `json:"stripeCustomerId,omitempty"`
	StripeSubscriptionID   string     `json:"stripeSubscriptionId,omitempty"`
	StripeCurrentPeriodEnd *time.Time `json:"stripeCurrentPeriodEnd,omitempty"`
}
