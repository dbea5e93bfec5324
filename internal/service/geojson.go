package service

import (
	geojson "github.com/paulmach/go.geojson"

	"github.com/jengzang/coverage-backend-go/internal/models"
)

// AreasToGeoJSON renders areas as point features carrying their quality figures.
func AreasToGeoJSON(reports []models.AreaReport) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range reports {
		f := geojson.NewPointFeature([]float64{r.Longitude, r.Latitude})
		f.ID = r.ID
		f.SetProperty("accuracy", r.Accuracy)
		f.SetProperty("performance", r.Performance)
		f.SetProperty("roundTripTimeQuality", r.Data.RoundTripTimeQuality)
		f.SetProperty("signal", r.Data.AverageSignalStrength)
		f.SetProperty("jitter", r.Data.JitterRatio)
		f.SetProperty("loss", r.Data.PacketLossRatio)
		if r.Data.CommonNetworkType != nil {
			f.SetProperty("networkType", *r.Data.CommonNetworkType)
		}
		fc.AddFeature(f)
	}
	return fc
}

// GapsToGeoJSON renders dead spots as line features. Open gaps are a single
// point at their starting area.
func GapsToGeoJSON(gaps []models.GapReport) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, g := range gaps {
		from := []float64{g.FromArea.Longitude, g.FromArea.Latitude}
		var f *geojson.Feature
		if g.ToArea != nil {
			f = geojson.NewLineStringFeature([][]float64{from, {g.ToArea.Longitude, g.ToArea.Latitude}})
			f.SetProperty("toAreaId", g.ToArea.ID)
		} else {
			f = geojson.NewPointFeature(from)
		}
		f.SetProperty("fromAreaId", g.FromArea.ID)
		f.SetProperty("lengthMeters", g.LengthMeters)
		f.SetProperty("open", g.Open)
		fc.AddFeature(f)
	}
	return fc
}
