package model

import "go.mongodb.org/mongo-driver/bson/primitive"

// Rate is one observation of an asset's mid price at a whole-second
// instant. The pair (AssetID, Time) is unique and is the only
// coordination point between the ingestion scheduler and the
// subscription poll loop: a duplicate write is a no-op, never an error.
type Rate struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	AssetID int64              `bson:"asset" json:"assetId"`
	Time    int64              `bson:"time" json:"time"`
	Value   float64            `bson:"value" json:"value"`
}

// Identity returns the persisted document's id. The poll loop compares
// identities to detect a genuinely new point rather than re-observing
// the one it already emitted.
func (r Rate) Identity() primitive.ObjectID {
	return r.ID
}
