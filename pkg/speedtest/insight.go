package speedtest

import "fmt"

// Usage-profile decision thresholds. The labels and copy below are part of
// the public contract: the UI renders them verbatim.
const (
	streamingMbpsPerUHD = 25
	gamingPingCeilingMs = 30
	workUploadFloorMbps = 10
)

// Evaluate maps a completed Result and a usage profile to a qualitative
// Assessment.
//
// It is a pure function: identical inputs yield identical outputs, and it
// performs exactly one floating-point comparison per profile.
func Evaluate(r Result, p Profile) (Assessment, error) {
	switch p {
	case ProfileStreaming:
		if r.DownloadMbps > streamingMbpsPerUHD {
			streams := int(r.DownloadMbps) / streamingMbpsPerUHD
			return Assessment{
				Title:       "Video Streaming",
				Status:      "Seamless",
				Description: fmt.Sprintf("Perfect for %d concurrent UHD streams.", streams),
			}, nil
		}
		return Assessment{
			Title:       "Video Streaming",
			Status:      "Limited",
			Description: "Buffer risks on high quality.",
		}, nil

	case ProfileGaming:
		if r.PingMs < gamingPingCeilingMs {
			return Assessment{
				Title:       "Online Gaming",
				Status:      "Elite",
				Description: "Low latency keeps fast-paced games responsive.",
			}, nil
		}
		return Assessment{
			Title:       "Online Gaming",
			Status:      "Fair",
			Description: "Expect noticeable delay in fast-paced games.",
		}, nil

	case ProfileWork:
		if r.UploadMbps > workUploadFloorMbps {
			return Assessment{
				Title:       "Remote Work",
				Status:      "Professional",
				Description: "Cloud sync and video calls will run smoothly.",
			}, nil
		}
		return Assessment{
			Title:       "Remote Work",
			Status:      "Basic",
			Description: "Large uploads may take a while.",
		}, nil
	}
	return Assessment{}, ErrUnknownProfile
}
