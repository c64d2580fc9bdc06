package catalog

import (
	"errors"
	"slices"
)

var (
	ErrNoProviders = errors.New("catalog needs at least one provider")
	ErrNoTimeSlots = errors.New("catalog needs at least one time slot")
)

// DefaultTimeSlots are the bookable half-hour labels of a clinic day, with the lunch gap.
var DefaultTimeSlots = []string{
	"08:00 AM", "08:30 AM", "09:00 AM", "09:30 AM",
	"10:00 AM", "10:30 AM", "11:00 AM", "11:30 AM",
	"01:00 PM", "01:30 PM", "02:00 PM", "02:30 PM",
	"03:00 PM", "03:30 PM", "04:00 PM", "04:30 PM",
	"05:00 PM", "05:30 PM",
}

var DefaultProviders = []string{
	"Dr. Jhunsoy Love Jun",
	"Dr. Jograd Ballesteros",
	"Dr. Beyoncé Calubaquib",
	"Dr. Estanislao Manansala",
	"Dr. Federico Liwanag VII",
	"Dr. Vergamino Antiporda",
	"Dr. Princess Payapa Pamplona",
}

type ServiceItem struct {
	Name       string `json:"name"`
	PriceRange string `json:"price_range"`
}

type ServiceCategory struct {
	Name  string        `json:"name"`
	Items []ServiceItem `json:"items"`
}

var DefaultServices = []ServiceCategory{
	{
		Name: "General & Preventive",
		Items: []ServiceItem{
			{"Dental check-up/consultation", "₱500 - ₱1,000"},
			{"Teeth cleaning (prophylaxis)", "₱1,000 - ₱2,500"},
			{"Oral examination & X-rays", "₱800 - ₱3,000"},
			{"Fluoride treatment", "₱500 - ₱1,500"},
			{"Sealants", "₱800 - ₱2,000 per tooth"},
		},
	},
	{
		Name: "Restorative Dentistry",
		Items: []ServiceItem{
			{"Fillings", "₱1,500 - ₱5,000 per tooth"},
			{"Crowns", "₱8,000 - ₱25,000 per tooth"},
			{"Bridges", "₱15,000 - ₱50,000"},
			{"Dentures", "₱10,000 - ₱60,000"},
			{"Dental implants", "₱40,000 - ₱100,000 per tooth"},
			{"Root canal treatment", "₱5,000 - ₱15,000"},
		},
	},
	{
		Name: "Cosmetic Dentistry",
		Items: []ServiceItem{
			{"Teeth whitening", "₱5,000 - ₱15,000"},
			{"Veneers", "₱15,000 - ₱40,000 per tooth"},
			{"Bonding", "₱2,000 - ₱8,000 per tooth"},
			{"Braces", "₱40,000 - ₱150,000"},
			{"Invisalign/clear aligners", "₱100,000 - ₱250,000"},
			{"Retainers", "₱3,000 - ₱10,000"},
		},
	},
	{
		Name: "Oral Surgery",
		Items: []ServiceItem{
			{"Tooth extraction", "₱1,500 - ₱5,000"},
			{"Wisdom tooth removal", "₱5,000 - ₱15,000"},
			{"Surgical removal of impacted teeth", "₱8,000 - ₱20,000"},
			{"Bone grafting", "₱15,000 - ₱40,000"},
		},
	},
}

// Catalog is the static roster of providers and time slots. It is never
// mutated after New, and every accessor hands out a copy.
type Catalog struct {
	providers []string
	timeSlots []string
	services  []ServiceCategory
}

func New(providers, timeSlots []string, services []ServiceCategory) (*Catalog, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	if len(timeSlots) == 0 {
		return nil, ErrNoTimeSlots
	}

	svc := make([]ServiceCategory, len(services))
	for i, c := range services {
		svc[i] = ServiceCategory{Name: c.Name, Items: slices.Clone(c.Items)}
	}

	return &Catalog{
		providers: slices.Clone(providers),
		timeSlots: slices.Clone(timeSlots),
		services:  svc,
	}, nil
}

// Default returns the clinic's built-in catalog.
func Default() *Catalog {
	c, _ := New(DefaultProviders, DefaultTimeSlots, DefaultServices)
	return c
}

func (c *Catalog) Providers() []string { return slices.Clone(c.providers) }

func (c *Catalog) TimeSlots() []string { return slices.Clone(c.timeSlots) }

func (c *Catalog) Services() []ServiceCategory {
	out := make([]ServiceCategory, len(c.services))
	for i, s := range c.services {
		out[i] = ServiceCategory{Name: s.Name, Items: slices.Clone(s.Items)}
	}
	return out
}

func (c *Catalog) HasProvider(name string) bool {
	return slices.Contains(c.providers, name)
}

func (c *Catalog) HasTimeSlot(label string) bool {
	return slices.Contains(c.timeSlots, label)
}
