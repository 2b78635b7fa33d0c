package meeting

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ZEGOCLOUD/zego_server_assistant/token/go/src/token04"

	"github.com/aura-webinar/seminar-portal/internal/models"
)

// zegoTokenValidSec matches the longest permitted schedule length.
const zegoTokenValidSec = int64(models.MaxAutoEndHours * 3600)

// ZegoConfig holds ZEGOCLOUD project credentials. ServerSecret must be 32 characters.
type ZegoConfig struct {
	AppID        uint32
	ServerSecret string
}

type zegoRoomPayload struct {
	RoomID       string      `json:"room_id"`
	Privilege    map[int]int `json:"privilege"`
	StreamIDList []string    `json:"stream_id_list"`
}

// ZegoSigner produces token04 room tokens. Viewers may log in but never publish.
type ZegoSigner struct {
	cfg ZegoConfig
}

// NewZegoSigner creates a ZEGOCLOUD signer.
func NewZegoSigner(cfg ZegoConfig) *ZegoSigner { return &ZegoSigner{cfg: cfg} }

func (z *ZegoSigner) Provider() string { return ProviderZego }
func (z *ZegoSigner) SDKKey() string   { return strconv.FormatUint(uint64(z.cfg.AppID), 10) }

// Sign returns a token04 for viewer in room roomID. now is unused; token04 stamps its own time.
func (z *ZegoSigner) Sign(roomID string, viewer models.Viewer, _ time.Time) (string, error) {
	if len(z.cfg.ServerSecret) != 32 {
		return "", fmt.Errorf("zego: server_secret must be 32 characters")
	}
	payload, err := json.Marshal(zegoRoomPayload{
		RoomID: roomID,
		Privilege: map[int]int{
			token04.PrivilegeKeyLogin:   token04.PrivilegeEnable,
			token04.PrivilegeKeyPublish: token04.PrivilegeDisable,
		},
	})
	if err != nil {
		return "", fmt.Errorf("zego: marshal payload: %w", err)
	}
	return token04.GenerateToken04(z.cfg.AppID, zegoUserID(viewer), z.cfg.ServerSecret, zegoTokenValidSec, string(payload))
}

func zegoUserID(v models.Viewer) string {
	return string(v.Kind) + "_" + v.ID
}
