package web

import (
	"github.com/infincia/picamera-webthing/internal/hw/camera"
	"github.com/infincia/picamera-webthing/internal/property"
)

// PropertyDescription is the gateway-facing metadata for one property.
type PropertyDescription struct {
	Type         string   `json:"type"`
	Unit         string   `json:"unit,omitempty"`
	Enum         []string `json:"enum,omitempty"`
	FriendlyName string   `json:"friendlyName,omitempty"`
	Description  string   `json:"description,omitempty"`
	ReadOnly     bool     `json:"readOnly,omitempty"`
	Href         string   `json:"href"`
}

// ThingDescription is the document served at the root path, describing
// the device and its property surface to the gateway.
type ThingDescription struct {
	Name        string                         `json:"name"`
	Type        string                         `json:"type"`
	Description string                         `json:"description"`
	Properties  map[string]PropertyDescription `json:"properties"`
}

// NewThingDescription builds the description for a camera thing.
// Temperature and humidity only appear when the sensor is configured,
// to avoid a clutter of dead detail bubbles in the gateway interface.
func NewThingDescription(name string, sensorEnabled bool) ThingDescription {
	props := map[string]PropertyDescription{
		property.NameResolution: {
			Type:         "string",
			Enum:         property.Resolutions,
			FriendlyName: "Resolution",
			Description:  "The current camera resolution",
			Href:         "/properties/" + property.NameResolution,
		},
		property.NameFrameRate: {
			Type:         "string",
			Unit:         "FPS",
			Enum:         property.FrameRates,
			FriendlyName: "Framerate",
			Description:  "The current camera frame rate",
			Href:         "/properties/" + property.NameFrameRate,
		},
		property.NameExposureMode: {
			Type:         "string",
			Enum:         camera.ExposureModes,
			FriendlyName: "Exposure",
			Description:  "The current camera exposure mode",
			Href:         "/properties/" + property.NameExposureMode,
		},
		property.NameStillImage: {
			Type:         "stillImage",
			Unit:         "base64",
			FriendlyName: "Image",
			Description:  "A still image from the camera",
			ReadOnly:     true,
			Href:         "/properties/" + property.NameStillImage,
		},
	}

	if sensorEnabled {
		props[property.NameTemperature] = PropertyDescription{
			Type:         "number",
			Unit:         "°C",
			FriendlyName: "Temperature",
			Description:  "The current camera temperature",
			ReadOnly:     true,
			Href:         "/properties/" + property.NameTemperature,
		}
		props[property.NameHumidity] = PropertyDescription{
			Type:         "number",
			Unit:         "%",
			FriendlyName: "Humidity",
			Description:  "The current camera humidity level",
			ReadOnly:     true,
			Href:         "/properties/" + property.NameHumidity,
		}
	}

	return ThingDescription{
		Name:        name,
		Type:        "camera",
		Description: "A Web Thing enabled PiCamera",
		Properties:  props,
	}
}
