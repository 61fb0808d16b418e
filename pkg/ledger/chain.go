package ledger

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/lanternworks/lantern-core/internal/models"
	"golang.org/x/crypto/hkdf"
)

// hkdfInfo namespaces ledger signing keys within the device master key.
const hkdfInfo = "lantern-core/progress-ledger"

// DeriveUserKey derives the per-user signing key from the device master
// key. The hub derives the same key from its copy of the master secret.
func DeriveUserKey(masterKey []byte, userID string) ([]byte, error) {
	r := hkdf.New(sha256.New, masterKey, []byte(userID), []byte(hkdfInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// HashProgress returns the hex SHA-256 of a record's canonical bytes. This
// is the value a successor stores as its PreviousHash.
func HashProgress(rec *models.ProgressRecord) string {
	sum := sha256.Sum256(CanonicalProgress(rec))
	return hex.EncodeToString(sum[:])
}

// SignProgress signs the digest of the record's canonical bytes with the
// per-user key: hex(HMAC-SHA256(SHA-256(canonical(rec)), key)).
func SignProgress(rec *models.ProgressRecord, userKey []byte) string {
	return signDigest(CanonicalProgress(rec), userKey)
}

// SignQuizAttempt signs a quiz attempt record the same way.
func SignQuizAttempt(rec *models.QuizAttemptRecord, userKey []byte) string {
	return signDigest(CanonicalQuizAttempt(rec), userKey)
}

// VerifyQuizAttempt recomputes a quiz attempt signature.
func VerifyQuizAttempt(rec *models.QuizAttemptRecord, userKey []byte) bool {
	expected := signDigest(CanonicalQuizAttempt(rec), userKey)
	return hmac.Equal([]byte(expected), []byte(rec.Signature))
}

func signDigest(canonical []byte, userKey []byte) string {
	digest := sha256.Sum256(canonical)
	mac := hmac.New(sha256.New, userKey)
	mac.Write(digest[:])
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyChain walks one user's records in sequence order and recomputes
// sequence continuity, previous-hash linkage, and every signature
// independently. It collects ALL failing record ids instead of stopping at
// the first, so the caller sees the full tamper extent.
//
// Fault attribution:
//   - a bad signature flags the record itself;
//   - a linkage mismatch observed at record i flags record i-1, whose
//     current bytes no longer hash to what its successor committed to;
//   - a sequence gap flags the record carrying the unexpected number.
func VerifyChain(records []*models.ProgressRecord, userKey []byte) []string {
	var invalid []string
	flagged := make(map[string]bool)
	flag := func(id string) {
		if !flagged[id] {
			flagged[id] = true
			invalid = append(invalid, id)
		}
	}

	expectedSeq := int64(1)
	for i, rec := range records {
		if rec.SequenceNumber != expectedSeq {
			flag(rec.ID)
			expectedSeq = rec.SequenceNumber
		}
		expectedSeq++

		if i == 0 {
			if rec.PreviousHash != "" {
				flag(rec.ID)
			}
		} else {
			prev := records[i-1]
			if rec.PreviousHash != HashProgress(prev) {
				flag(prev.ID)
			}
		}

		expected := SignProgress(rec, userKey)
		if !hmac.Equal([]byte(expected), []byte(rec.Signature)) {
			flag(rec.ID)
		}
	}

	return invalid
}
