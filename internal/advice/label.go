package advice

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Freeeeeet/felanocare/internal/model"
)

// Label - поля этикетки OpenFDA, нужные каталогу аптеки
type Label struct {
	GenericName  string   `json:"generic_name"`
	BrandNames   []string `json:"brand_names"`
	Manufacturer string   `json:"manufacturer"`
	Purpose      string   `json:"purpose"`
	Dosage       string   `json:"dosage"`
	RxCUI        string   `json:"rxcui,omitempty"`
}

type labelRecord struct {
	OpenFDA struct {
		GenericName      []string `json:"generic_name"`
		BrandName        []string `json:"brand_name"`
		ManufacturerName []string `json:"manufacturer_name"`
		RxCUI            []string `json:"rxcui"`
	} `json:"openfda"`
	Purpose                 []string `json:"purpose"`
	DosageAndAdministration []string `json:"dosage_and_administration"`
}

// ParseLabel разбирает запись OpenFDA. Отсутствующие поля получают
// "Unknown" или "N/A", как показывает их витрина.
func ParseLabel(rec DrugRecord) (Label, error) {
	var r labelRecord
	if err := json.Unmarshal(rec, &r); err != nil {
		return Label{}, fmt.Errorf("decode openfda label: %w", err)
	}

	return Label{
		GenericName:  firstOr(r.OpenFDA.GenericName, "Unknown"),
		BrandNames:   r.OpenFDA.BrandName,
		Manufacturer: firstOr(r.OpenFDA.ManufacturerName, "Unknown"),
		Purpose:      firstOr(r.Purpose, "N/A"),
		Dosage:       firstOr(r.DosageAndAdministration, "N/A"),
		RxCUI:        firstOr(r.OpenFDA.RxCUI, ""),
	}, nil
}

// ProductID - ключ, под которым этикетка попадёт в каталог
func (l Label) ProductID() string {
	return model.ProductID(l.RxCUI, l.GenericName)
}

func firstOr(values []string, fallback string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return fallback
}
