// Package mapper transforms vendor detail records into the flat normalized
// product schema.
//
// Mapping is pure: no I/O, no retries. A record that cannot be mapped is
// skipped and counted, never fatal to the rest of its batch.
package mapper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/Zeeshan138063/digikey-client/pkg/catalog"
)

var mappingSkipsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "digikey_mapping_skips_total",
	Help: "Vendor records skipped because mapping failed",
})

// ErrMapping is returned when a vendor record cannot be mapped.
var ErrMapping = errors.New("mapping failed")

// Mapper maps one vendor record to the normalized output schema.
type Mapper interface {
	Map(record catalog.VendorRecord) (NormalizedProduct, error)
}

// NormalizedProduct is the flat output schema. Field names follow the
// downstream import format, including its historical spellings.
type NormalizedProduct struct {
	ProductNameEn            string  `json:"Product_Name_En"`
	ManufacturerPartNumber   string  `json:"ManufacturerPartNumber"`
	ManufacturerName         string  `json:"Manufacturer_Name"`
	Series                   string  `json:"Series"`
	ShortDescriptionEn       string  `json:"ShortDescription_En"`
	DescriptionEn            string  `json:"Description_En"`
	CountryOfOrigin          string  `json:"CountryOfOrigin"`
	ExpirationDate           string  `json:"ExpirationDate"`
	RoHSCompliant            string  `json:"RoHSCompliant"`
	BasePrice                float64 `json:"BasePrice"`
	BulkPrices               string  `json:"BulkPrices"`
	StockQuantity            float64 `json:"StockQuantity"`
	LeadTimeInDays           string  `json:"LeadTimeInDays"`
	ManufacturerStandardPkg  string  `json:"Manufacturer_Standard_Package"`
	PackagingType            string  `json:"PackagingType"`
	Warnings                 string  `json:"Warnings"`
	Photos                   string  `json:"Photos"`
	Photos360                string  `json:"Photos360"`
	Datasheets               string  `json:"Datasheets"`
	EnvironmentalInformation string  `json:"Environmental_Information"`
	FeaturedProduct          string  `json:"Featured_Product"`
	MSDSMaterialSafety       string  `json:"MSDS_Material_Safety_Datasheet"`
	ProductBrief             string  `json:"Product_Brief"`
	Category                 string  `json:"Category"`
	Subcategory              string  `json:"Subcategory"`
	SubSubcategory           string  `json:"Sub-Subcategory"`
	SubSubSubcategory        string  `json:"Sub-sub-subcategory"`
	SubSubSubSubcategory     string  `json:"Sub-sub-sub-subcategory"`
	MoistureSensitivityLevel string  `json:"Moisture_Sensitivity_Level_(MSL)"`
	ReachStatus              string  `json:"REACH_Status"`
	ECCN                     string  `json:"ECCN"`
	HTSUS                    string  `json:"HTSUS"`
	OtherNames               string  `json:"Other_Names"`
	AlternateColor           string  `json:"Alternate_Color"`
	AlternateLength          string  `json:"Alternate_Length"`
	Type                     string  `json:"Type"`
	PartStatus               string  `json:"Part_Status"`
	Color                    string  `json:"Color"`
	Width                    string  `json:"Width"`
	Length                   string  `json:"Length"`
	ShelfLife                string  `json:"Shelf_Life"`
	ShelfLifeStart           string  `json:"Shelf_Life_Start"`
	StorageRefrigerationTemp string  `json:"Storage/Refrigeration_Temperature"`
	Features                 string  `json:"Features"`
	BaseProductNumber        string  `json:"Base_Product_Number"`
	Material                 string  `json:"Material"`
	ShrinkageRatio           string  `json:"Shrinkage_Ratio"`
	InnerDiameterSupplied    string  `json:"Inner_Diameter_-_Supplied"`
	InnerDiameterRecovered   string  `json:"Inner_Diameter_-_Recovered"`
	RecoveredWallThickness   string  `json:"Recovered_Wall_Thickness"`
	OperatingTemperature     string  `json:"Operating_Temperature"`
	ShrinkTemperature        string  `json:"Shrink_Temperature"`
	Link                     string  `json:"Link"`
}

// DetailMapper maps product-detail responses.
type DetailMapper struct{}

// NewDetailMapper creates a detail-response mapper.
func NewDetailMapper() *DetailMapper {
	return &DetailMapper{}
}

// Map flattens one detail response into the normalized schema.
// The record must carry a Product object; anything else is ErrMapping.
func (m *DetailMapper) Map(record catalog.VendorRecord) (NormalizedProduct, error) {
	product, ok := record["Product"].(map[string]any)
	if !ok {
		return NormalizedProduct{}, fmt.Errorf("%w: response has no Product object", ErrMapping)
	}

	params := asSlice(product["Parameters"])
	variations := asSlice(product["ProductVariations"])
	description := asMap(product["Description"])
	manufacturer := asMap(product["Manufacturer"])
	classifications := asMap(product["Classifications"])
	series := asMap(product["Series"])

	categories := categoryHierarchy(asMap(product["Category"]))

	return NormalizedProduct{
		ProductNameEn:            str(description, "ProductDescription"),
		ManufacturerPartNumber:   str(product, "ManufacturerProductNumber"),
		ManufacturerName:         str(manufacturer, "Name"),
		Series:                   str(series, "Name"),
		ShortDescriptionEn:       str(description, "ProductDescription"),
		DescriptionEn:            str(description, "DetailedDescription"),
		RoHSCompliant:            str(classifications, "RohsStatus"),
		BasePrice:                basePrice(variations),
		BulkPrices:               bulkPrices(variations),
		StockQuantity:            num(product, "QuantityAvailable"),
		LeadTimeInDays:           leadTime(product),
		ManufacturerStandardPkg:  variationStr(variations, "StandardPackage"),
		PackagingType:            packageType(variations),
		Photos:                   formatPhotos(str(product, "PhotoUrl")),
		Datasheets:               formatDatasheet(str(product, "DatasheetUrl")),
		Category:                 categories[0],
		Subcategory:              categories[1],
		SubSubcategory:           categories[2],
		SubSubSubcategory:        categories[3],
		SubSubSubSubcategory:     categories[4],
		MoistureSensitivityLevel: str(classifications, "MoistureSensitivityLevel"),
		ReachStatus:              str(classifications, "ReachStatus"),
		ECCN:                     str(classifications, "ExportControlClassNumber"),
		HTSUS:                    str(classifications, "HtsusCode"),
		OtherNames:               otherNames(product["OtherNames"]),
		Type:                     parameterValue(params, "Type"),
		PartStatus:               str(asMap(product["ProductStatus"]), "Status"),
		Color:                    parameterValue(params, "Color"),
		Width:                    parameterValue(params, "Width"),
		Length:                   parameterValue(params, "Length"),
		ShelfLife:                parameterValue(params, "Shelf Life"),
		StorageRefrigerationTemp: parameterValue(params, "Storage/Refrigeration Temperature"),
		Features:                 parameterValue(params, "Features"),
		BaseProductNumber:        str(asMap(product["BaseProductNumber"]), "Name"),
		Material:                 parameterValue(params, "Material"),
		ShrinkageRatio:           parameterValue(params, "Shrinkage Ratio"),
		InnerDiameterSupplied:    parameterValue(params, "Inner Diameter - Supplied"),
		InnerDiameterRecovered:   parameterValue(params, "Inner Diameter - Recovered"),
		RecoveredWallThickness:   parameterValue(params, "Recovered Wall Thickness"),
		OperatingTemperature:     parameterValue(params, "Operating Temperature"),
		ShrinkTemperature:        parameterValue(params, "Shrink Temperature"),
		Link:                     str(product, "ProductUrl"),
	}, nil
}

// MapBatch maps a slice of records with the skip-and-log policy: a record
// that fails to map is logged and skipped, the rest of the batch proceeds.
// The skip count is surfaced so callers can report partial batches.
func MapBatch(m Mapper, records []catalog.VendorRecord) (mapped []NormalizedProduct, skipped int) {
	for i, record := range records {
		product, err := m.Map(record)
		if err != nil {
			skipped++
			mappingSkipsTotal.Inc()
			log.Warn().Err(err).Int("index", i).Msg("Record skipped, mapping failed")
			continue
		}
		mapped = append(mapped, product)
	}
	return mapped, skipped
}

// --- lookup helpers over the untyped vendor structure ---

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func str(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func num(m map[string]any, key string) float64 {
	if m == nil {
		return 0
	}
	n, _ := m[key].(float64)
	return n
}

// parameterValue extracts a parameter value by its display text.
func parameterValue(params []any, text string) string {
	for _, p := range params {
		param := asMap(p)
		if str(param, "ParameterText") == text {
			return str(param, "ValueText")
		}
	}
	return ""
}

func firstVariation(variations []any) map[string]any {
	if len(variations) == 0 {
		return nil
	}
	return asMap(variations[0])
}

// variationStr renders a first-variation value as text. The vendor sends
// some of these fields as strings and some as numbers.
func variationStr(variations []any, key string) string {
	v, ok := firstVariation(variations)[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

func packageType(variations []any) string {
	return str(asMap(firstVariation(variations)["PackageType"]), "Name")
}

// basePrice is the first unit price of the first variation's standard
// pricing table.
func basePrice(variations []any) float64 {
	pricing := asSlice(firstVariation(variations)["StandardPricing"])
	if len(pricing) == 0 {
		return 0
	}
	return num(asMap(pricing[0]), "UnitPrice")
}

// bulkPrices formats the standard pricing tiers as "qty+-price;qty+-price".
func bulkPrices(variations []any) string {
	pricing := asSlice(firstVariation(variations)["StandardPricing"])
	if len(pricing) == 0 {
		return ""
	}

	tiers := make([]string, 0, len(pricing))
	for _, p := range pricing {
		tier := asMap(p)
		tiers = append(tiers, fmt.Sprintf("%v+-%v", tier["BreakQuantity"], tier["UnitPrice"]))
	}
	return strings.Join(tiers, ";")
}

// formatPhotos doubles the photo URL into the "main|thumbnail" slot pair.
func formatPhotos(photoURL string) string {
	if photoURL == "" {
		return ""
	}
	return photoURL + "|" + photoURL
}

// formatDatasheet normalizes protocol-relative datasheet URLs.
func formatDatasheet(datasheetURL string) string {
	if strings.HasPrefix(datasheetURL, "//") {
		return "https:" + datasheetURL
	}
	return datasheetURL
}

// categoryHierarchy flattens the category tree into up to five levels.
func categoryHierarchy(category map[string]any) [5]string {
	var levels [5]string
	if category == nil {
		return levels
	}

	levels[0] = str(category, "Name")
	children := asSlice(category["ChildCategories"])
	for i := 0; i < len(children) && i < 4; i++ {
		levels[i+1] = str(asMap(children[i]), "Name")
	}
	return levels
}

func otherNames(v any) string {
	names := asSlice(v)
	if len(names) == 0 {
		return ""
	}
	parts := make([]string, 0, len(names))
	for _, n := range names {
		if s, ok := n.(string); ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ",")
}

// leadTime renders ManufacturerLeadWeeks as "<n> Weeks".
func leadTime(product map[string]any) string {
	switch v := product["ManufacturerLeadWeeks"].(type) {
	case string:
		if v == "" {
			return ""
		}
		return v + " Weeks"
	case float64:
		if v == 0 {
			return ""
		}
		return fmt.Sprintf("%v Weeks", v)
	default:
		return ""
	}
}
