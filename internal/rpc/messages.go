package rpc

import "github.com/gencurrent/async-socket-exchange-rate/internal/model"

// AssetSummary is the wire projection of model.Asset inside an
// "assets" response.
type AssetSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// AssetsMessage is the message payload of an "assets" response.
type AssetsMessage struct {
	Assets []AssetSummary `json:"assets"`
}

// NewAssetsEnvelope projects a list of assets into the "assets" response envelope.
func NewAssetsEnvelope(assets []model.Asset) Envelope {
	summaries := make([]AssetSummary, len(assets))
	for i, a := range assets {
		summaries[i] = AssetSummary{ID: a.ID, Name: a.Name}
	}
	return Envelope{Action: "assets", Message: AssetsMessage{Assets: summaries}}
}

// Point is the wire projection of model.Rate carried by both
// "asset_history" and "point" responses.
type Point struct {
	AssetName string  `json:"assetName"`
	AssetID   int64   `json:"assetId"`
	Time      int64   `json:"time"`
	Value     float64 `json:"value"`
}

// NewPoint projects a Rate plus its owning asset's name into the wire shape.
func NewPoint(assetName string, r model.Rate) Point {
	return Point{AssetName: assetName, AssetID: r.AssetID, Time: r.Time, Value: r.Value}
}

// AssetHistoryMessage is the message payload of an "asset_history" response.
type AssetHistoryMessage struct {
	Points []Point `json:"points"`
}

// NewAssetHistoryEnvelope builds the "asset_history" response, points
// already ordered newest-first by the caller.
func NewAssetHistoryEnvelope(points []Point) Envelope {
	return Envelope{Action: "asset_history", Message: AssetHistoryMessage{Points: points}}
}

// NewPointEnvelope builds a single "point" response.
func NewPointEnvelope(p Point) Envelope {
	return Envelope{Action: "point", Message: p}
}

// SubscribeCommand is the decoded message payload of a "subscribe" command.
type SubscribeCommand struct {
	AssetID *int64 `json:"assetId"`
}
