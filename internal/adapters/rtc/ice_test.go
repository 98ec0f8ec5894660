package rtc

import (
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/LiveClass/internal/config"
)

func TestICEServers(t *testing.T) {
	got, err := ICEServers(nil)
	if err != nil || len(got) != 1 || got[0].URLs[0] != "stun:stun.l.google.com:19302" {
		t.Fatalf("default = %+v, %v", got, err)
	}

	got, err = ICEServers([]config.ICEServer{
		{URLs: []string{"stun:stun.example.org:3478"}},
		{URLs: []string{"turn:turn.example.org:3478?transport=udp"}, Username: "u", Credential: "p"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Username != "" || got[1].Credential != "p" || got[1].CredentialType != webrtc.ICECredentialTypePassword {
		t.Fatalf("servers = %+v", got)
	}
}

func TestICEServersRejects(t *testing.T) {
	cases := map[string]config.ICEServer{
		"no urls":      {},
		"http":         {URLs: []string{"http://example.org"}},
		"turn no pass": {URLs: []string{"turns:turn.example.org"}, Username: "u"},
	}
	for name, s := range cases {
		if _, err := ICEServers([]config.ICEServer{s}); err == nil {
			t.Errorf("%s: accepted", name)
		}
	}
}
