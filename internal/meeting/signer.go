package meeting

import (
	"fmt"
	"time"

	"github.com/aura-webinar/seminar-portal/internal/models"
)

// Provider names accepted in MEETING_PROVIDER.
const (
	ProviderZoom = "zoom"
	ProviderZego = "zego"
)

// Join is what the viewer page needs to open the embedded meeting widget.
type Join struct {
	Provider    string `json:"provider"`
	RoomID      string `json:"room_id"`
	RoomSecret  string `json:"room_secret,omitempty"`
	DisplayName string `json:"display_name"`
	Signature   string `json:"signature"`
	SDKKey      string `json:"sdk_key"`
}

// Signer issues join credentials for one meeting provider.
type Signer interface {
	Provider() string
	Sign(roomID string, viewer models.Viewer, now time.Time) (signature string, err error)
	SDKKey() string
}

// NewSigner picks the signer configured by provider.
func NewSigner(provider string, zoom ZoomConfig, zego ZegoConfig) (Signer, error) {
	switch provider {
	case ProviderZoom, "":
		if zoom.SDKKey == "" || zoom.SDKSecret == "" {
			return nil, fmt.Errorf("meeting: zoom sdk key and secret required")
		}
		return NewZoomSigner(zoom), nil
	case ProviderZego:
		if zego.AppID == 0 || zego.ServerSecret == "" {
			return nil, fmt.Errorf("meeting: zego app_id and server_secret required")
		}
		return NewZegoSigner(zego), nil
	}
	return nil, fmt.Errorf("meeting: unknown provider %q", provider)
}
