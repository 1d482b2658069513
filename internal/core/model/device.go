package model

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// IMEIs arrive as 16 uppercase hex digits: a pad nibble plus the 15-digit
// IMEI.
var imeiPattern = regexp.MustCompile(`^[0-9A-F]{15,16}$`)

type Device struct {
	ID             string    `bson:"_id" json:"id"`
	IMEI           string    `bson:"imei" json:"imei"`
	Name           string    `bson:"name" json:"name"`
	Status         string    `bson:"status" json:"status"`
	UserID         string    `bson:"userId,omitempty" json:"userId,omitempty"`
	LastLatitude   float64   `bson:"lastLatitude" json:"lastLatitude"`
	LastLongitude  float64   `bson:"lastLongitude" json:"lastLongitude"`
	LastUpdate     time.Time `bson:"lastUpdate" json:"lastUpdate"`
	LastConnect    time.Time `bson:"lastConnect" json:"lastConnect"`
	BatteryPercent int       `bson:"batteryPercent" json:"batteryPercent"`
	SignalBars     int       `bson:"signalBars" json:"signalBars"`
	ACCOn          bool      `bson:"accOn" json:"accOn"`
	Charging       bool      `bson:"charging" json:"charging"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
}

func NewDevice(imei string) *Device {
	return &Device{
		ID:        uuid.NewString(),
		IMEI:      imei,
		Name:      "Tracker-" + imei[len(imei)-6:],
		Status:    StatusOffline,
		CreatedAt: time.Now().UTC(),
	}
}

// ValidIMEI reports whether s has the shape of a device IMEI as carried in
// a login packet.
func ValidIMEI(s string) bool {
	return imeiPattern.MatchString(s)
}
