package group

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/monkelabs/monke-backend/pkg/db/models"
	"github.com/monkelabs/monke-backend/pkg/enums"
)

const redemptionCodePrefix = "MONKE"

// QRPayload is the scannable redemption document handed to the external
// verifier.
type QRPayload struct {
	Code            string    `json:"code"`
	DiscountPercent int       `json:"discount_percent"`
	Wallet          string    `json:"wallet"`
	MerchantID      uuid.UUID `json:"merchant_id"`
}

// BuildRedemptionCode derives the deterministic code for a (group, wallet)
// pair: MONKE-<first 8 hex of group uuid>-<first 8 hex of sha256(group||wallet)>.
// Hashing the wallet together with the group id keeps the short suffix
// collision-free within a group, and regeneration always yields the same code.
func BuildRedemptionCode(groupID uuid.UUID, wallet string) string {
	groupHex := hex.EncodeToString(groupID[:])[:8]
	sum := sha256.Sum256([]byte(groupID.String() + wallet))
	return fmt.Sprintf("%s-%s-%s", redemptionCodePrefix, groupHex, hex.EncodeToString(sum[:])[:8])
}

// BuildRedemption assembles the redemption row issued for one member at lock
// time.
func BuildRedemption(groupID uuid.UUID, wallet string, finalDiscountPercent int, merchantID uuid.UUID, issuedAt time.Time) (models.Redemption, error) {
	code := BuildRedemptionCode(groupID, wallet)
	payload, err := json.Marshal(QRPayload{
		Code:            code,
		DiscountPercent: finalDiscountPercent,
		Wallet:          wallet,
		MerchantID:      merchantID,
	})
	if err != nil {
		return models.Redemption{}, err
	}
	return models.Redemption{
		ID:        uuid.New(),
		GroupID:   groupID,
		Wallet:    wallet,
		Code:      code,
		QRPayload: payload,
		Status:    enums.RedemptionStatusIssued,
		IssuedAt:  issuedAt,
	}, nil
}
