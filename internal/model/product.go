package model

import (
	"slices"
	"strings"
	"time"
)

// ProductCategoryPrescription - категория препаратов, импортированных из OpenFDA
const ProductCategoryPrescription = "prescription"

// Product - позиция каталога аптеки. Цена в копейках.
type Product struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	BrandNames   []string  `json:"brand_names"`
	Manufacturer string    `json:"manufacturer"`
	Category     string    `json:"category"`
	Purpose      string    `json:"purpose"`
	Dosage       string    `json:"dosage"`
	Price        int64     `json:"price"`
	Stock        int       `json:"stock"`
	RxCUI        string    `json:"rxcui,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ProductID - ключ позиции каталога: RxCUI, если он есть, иначе действующее
// вещество в нижнем регистре с "_" вместо пробелов
func ProductID(rxcui, genericName string) string {
	if rxcui = strings.TrimSpace(rxcui); rxcui != "" {
		return rxcui
	}
	return strings.ToLower(strings.Join(strings.Fields(genericName), "_"))
}

func (p *Product) Clone() *Product {
	c := *p
	c.BrandNames = slices.Clone(p.BrandNames)
	return &c
}

// Equal сравнивает позиции без учёта CreatedAt
func (p *Product) Equal(o *Product) bool {
	return p.ID == o.ID &&
		p.Name == o.Name &&
		slices.Equal(p.BrandNames, o.BrandNames) &&
		p.Manufacturer == o.Manufacturer &&
		p.Category == o.Category &&
		p.Purpose == o.Purpose &&
		p.Dosage == o.Dosage &&
		p.Price == o.Price &&
		p.Stock == o.Stock &&
		p.RxCUI == o.RxCUI
}
