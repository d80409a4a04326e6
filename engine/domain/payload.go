package domain

// Payload field names for the vector-store collection. The *_num fields
// are filterable numeric ranges; the *_key fields are the exact-match
// predicates used in strict retrieval.
const (
	FieldBrand        = "brand"
	FieldSeries       = "series"
	FieldModel        = "model"
	FieldYear         = "year"
	FieldPrice        = "price"
	FieldOdometer     = "odometer"
	FieldFuel         = "fuel"
	FieldTransmission = "transmission"
	FieldBodyType     = "body_type"
	FieldDrivetrain   = "drivetrain"
	FieldLocation     = "location"
	FieldURL          = "url"
	FieldText         = "text"

	FieldPriceNum    = "price_num"
	FieldYearNum     = "year_num"
	FieldOdometerNum = "odometer_num"

	FieldBrandKey        = "brand_key"
	FieldSeriesKey       = "series_key"
	FieldModelKey        = "model_key"
	FieldCityKey         = "city_key"
	FieldFuelKey         = "fuel_key"
	FieldTransmissionKey = "transmission_key"
	FieldBodyTypeKey     = "body_type_key"
	FieldDrivetrainKey   = "drivetrain_key"
)

// Payload flattens a Listing into the vector-store payload map, with
// docText stored under FieldText. Absent numeric fields are omitted so
// the invariant "numeric field is a finite number or absent" holds in
// the store as well.
func (l Listing) Payload(docText string) map[string]any {
	p := map[string]any{
		FieldBrand:        l.Brand,
		FieldSeries:       l.Series,
		FieldModel:        l.Model,
		FieldYear:         l.Year,
		FieldPrice:        l.Price,
		FieldOdometer:     l.Odometer,
		FieldFuel:         l.Fuel,
		FieldTransmission: l.Transmission,
		FieldBodyType:     l.BodyType,
		FieldDrivetrain:   l.Drivetrain,
		FieldLocation:     l.Location,
		FieldURL:          l.URL,
		FieldText:         docText,

		FieldBrandKey:        l.BrandKey,
		FieldSeriesKey:       l.SeriesKey,
		FieldModelKey:        l.ModelKey,
		FieldCityKey:         l.CityKey,
		FieldFuelKey:         l.FuelKey,
		FieldTransmissionKey: l.TransmissionKey,
		FieldBodyTypeKey:     l.BodyTypeKey,
		FieldDrivetrainKey:   l.DrivetrainKey,
	}
	if l.PriceNum != nil {
		p[FieldPriceNum] = *l.PriceNum
	}
	if l.YearNum != nil {
		p[FieldYearNum] = *l.YearNum
	}
	if l.OdometerNum != nil {
		p[FieldOdometerNum] = *l.OdometerNum
	}
	return p
}

// ListingFromPayload rebuilds a Listing from a search-hit payload.
// Numeric fields tolerate both integer and double wire encodings.
func ListingFromPayload(p map[string]any) Listing {
	l := Listing{
		Brand:        str(p, FieldBrand),
		Series:       str(p, FieldSeries),
		Model:        str(p, FieldModel),
		Year:         str(p, FieldYear),
		Price:        str(p, FieldPrice),
		Odometer:     str(p, FieldOdometer),
		Fuel:         str(p, FieldFuel),
		Transmission: str(p, FieldTransmission),
		BodyType:     str(p, FieldBodyType),
		Drivetrain:   str(p, FieldDrivetrain),
		Location:     str(p, FieldLocation),
		URL:          str(p, FieldURL),

		BrandKey:        str(p, FieldBrandKey),
		SeriesKey:       str(p, FieldSeriesKey),
		ModelKey:        str(p, FieldModelKey),
		CityKey:         str(p, FieldCityKey),
		FuelKey:         str(p, FieldFuelKey),
		TransmissionKey: str(p, FieldTransmissionKey),
		BodyTypeKey:     str(p, FieldBodyTypeKey),
		DrivetrainKey:   str(p, FieldDrivetrainKey),
	}
	l.PriceNum = num(p, FieldPriceNum)
	l.OdometerNum = num(p, FieldOdometerNum)
	if y := num(p, FieldYearNum); y != nil {
		yi := int(*y)
		l.YearNum = &yi
	}
	return l
}

func str(p map[string]any, key string) string {
	if s, ok := p[key].(string); ok {
		return s
	}
	return ""
}

func num(p map[string]any, key string) *float64 {
	switch v := p[key].(type) {
	case float64:
		return &v
	case int64:
		f := float64(v)
		return &f
	case int:
		f := float64(v)
		return &f
	}
	return nil
}
