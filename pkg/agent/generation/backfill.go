package generation

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"iso-risk-agent-be/internal/entity"
)

var controlNamespace = uuid.MustParse("6f1c2b7e-4d0a-5c1e-9b3f-2a7d8e4c1f60")

// ControlUUID derives the storage id from the risk and the human-facing id,
// so regenerating the same candidate always targets the same record.
func ControlUUID(riskId, controlId string) string {
	return uuid.NewSHA1(controlNamespace, []byte(riskId+"/"+controlId)).String()
}

// Backfill makes every control safe to store: it belongs to risk and
// userId, carries a CTRL-<risk>-<seq> id numbered from startSeq, and has a
// deterministic storage id.
func Backfill(controls []*entity.Control, risk *entity.Risk, userId string, startSeq int) {
	if startSeq < 1 {
		startSeq = 1
	}
	prefix := "CTRL-" + risk.Id + "-"
	taken := map[string]bool{}
	for _, c := range controls {
		if !strings.HasPrefix(c.ControlId, prefix) {
			continue
		}
		if taken[c.ControlId] {
			c.ControlId = ""
			continue
		}
		taken[c.ControlId] = true
	}

	seq := startSeq
	now := time.Now().UTC()
	for _, c := range controls {
		c.RiskId = risk.Id
		c.UserId = userId
		if !strings.HasPrefix(c.ControlId, prefix) {
			for taken[entity.ControlIdFor(risk.Id, seq)] {
				seq++
			}
			c.ControlId = entity.ControlIdFor(risk.Id, seq)
			taken[c.ControlId] = true
			seq++
		}
		if c.Id == "" {
			c.Id = ControlUUID(c.RiskId, c.ControlId)
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
	}
}
