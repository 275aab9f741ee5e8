package domain

const (
	SNRGood  = float32(-7)
	SNRFair  = float32(-15)
	RSSIGood = -115
	RSSIFair = -126
)

type SignalQuality int

const (
	SignalUnknown SignalQuality = iota
	SignalBad
	SignalFair
	SignalGood
)

func (q SignalQuality) String() string {
	switch q {
	case SignalBad:
		return "bad"
	case SignalFair:
		return "fair"
	case SignalGood:
		return "good"
	default:
		return "unknown"
	}
}

// DetermineSignalQuality classifies a link by the SNR/RSSI pair reported
// with a received frame. Thresholds follow the usual LoRa indicator bands.
func DetermineSignalQuality(snr float32, rssi int) SignalQuality {
	if rssi == 0 {
		return SignalUnknown
	}
	if snr >= SNRGood && rssi >= RSSIGood {
		return SignalGood
	}
	if snr >= SNRFair && rssi >= RSSIFair {
		return SignalFair
	}
	return SignalBad
}
