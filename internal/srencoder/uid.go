package srencoder

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// uidRoot is a UID prefix under the freely usable 1.2.826.0.1.3680043
// arc for generated SOP/series instance UIDs.
const uidRoot = "1.2.826.0.1.3680043.10.1432"

// NewUID returns a unique DICOM UID (<= 64 chars): root, timestamp, and
// random entropy so concurrent generations never collide.
func NewUID() string {
	u := uuid.New()
	entropy := binary.BigEndian.Uint32(u[:4])
	return fmt.Sprintf("%s.%d.%d", uidRoot, time.Now().UnixNano(), entropy)
}
