// Package domain models hourly electricity consumption per Danish municipality
// and industry branch, as published by Energi Data Service.
//
// # Data Source
//
// Records come from the Energi Data Service REST API
// (https://api.energidataservice.dk/dataset/<name>). The default dataset,
// ConsumptionIndustry, reports one row per hour, municipality and branch:
//
//	HourUTC         "2021-01-01T00:00:00"  hour start in UTC
//	HourDK          "2021-01-01T01:00:00"  hour start in Danish local time, no offset
//	MunicipalityNo  "101"                  municipality code
//	Branche         "Erhverv"              industry branch, Danish name
//	ConsumptionkWh  1234.567               consumption for the hour
//
// The dataset's metadata document lives under /meta/dataset/<name>.
//
// # Canonical Columns
//
// After the rename stage the pipeline works on:
//
//	datetime_dk       hourly local time, timezone-naive (time.Time in UTC location)
//	municipality_num  one of the 98 municipality codes, 101 Copenhagen to 860 Hjørring
//	branch            1 Public (Offentligt), 2 Industry (Erhverv), 3 Private (Privat)
//	consumption_kwh   non-negative float
//
// The triple (datetime_dk, municipality_num, branch) is unique within an
// extraction window, and datetime_dk forms an hourly sequence per
// municipality and branch except where the source had outages.
//
// # Extraction Windows
//
// A window [start, end] is always queried as [start, end+1 day) so the last
// requested day is included in full. Timestamps are sent as "2006-01-02T15:04".
package domain
