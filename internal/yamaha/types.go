package yamaha

import "encoding/xml"

// Zone identifies one zone of a multi-zone receiver. The values are the
// element names the receiver's control protocol uses.
type Zone string

// Receiver zones.
const (
	ZoneMain Zone = "Main_Zone"
	Zone2    Zone = "Zone_2"
	Zone3    Zone = "Zone_3"
)

// Zones lists every zone in poll order.
func Zones() []Zone {
	return []Zone{ZoneMain, Zone2, Zone3}
}

// Types below mirror the receiver's XML documents. JSON tags are carried
// alongside because zone statuses travel to hub subscribers as JSON.

// Level is a volume level in the receiver's fixed-point encoding: Val is
// the level scaled by 10^Exp, so -350 with Exp 1 and Unit dB is -35.0 dB.
type Level struct {
	Val  int    `xml:"Val" json:"val"`
	Exp  int    `xml:"Exp" json:"exp"`
	Unit string `xml:"Unit" json:"unit"`
}

// VolumeStatus is a zone's volume block.
type VolumeStatus struct {
	Lvl  Level  `xml:"Lvl" json:"lvl"`
	Mute string `xml:"Mute" json:"mute"`
}

// PowerControl is a zone's power block.
type PowerControl struct {
	Power string `xml:"Power" json:"power"`
	Sleep string `xml:"Sleep" json:"sleep"`
}

// InputIcon holds the icon paths of an input.
type InputIcon struct {
	On  string `xml:"On" json:"on"`
	Off string `xml:"Off" json:"off"`
}

// InputSelItem describes the currently selected input.
type InputSelItem struct {
	Param     string    `xml:"Param" json:"param"`
	RW        string    `xml:"RW" json:"rw"`
	Title     string    `xml:"Title" json:"title"`
	Icon      InputIcon `xml:"Icon" json:"icon"`
	SrcName   string    `xml:"Src_Name" json:"src_name"`
	SrcNumber int       `xml:"Src_Number" json:"src_number"`
}

// InputStatus is a zone's input block.
type InputStatus struct {
	InputSel string       `xml:"Input_Sel" json:"input_sel"`
	Current  InputSelItem `xml:"Current_Input_Sel_Item" json:"current_input_sel_item"`
}

// SurroundProgram is the active sound program selection.
type SurroundProgram struct {
	Straight     string `xml:"Straight" json:"straight"`
	Enhancer     string `xml:"Enhancer" json:"enhancer"`
	SoundProgram string `xml:"Sound_Program" json:"sound_program"`
}

// SurroundStatus is a zone's surround block.
type SurroundStatus struct {
	Current SurroundProgram `xml:"Program_Sel>Current" json:"current"`
}

// BasicStatus is the full state snapshot of one zone. It is the unit of
// change detection: polls compare whole documents and publish on any
// difference.
type BasicStatus struct {
	PowerControl PowerControl   `xml:"Power_Control" json:"power_control"`
	Volume       VolumeStatus   `xml:"Volume" json:"volume"`
	Input        InputStatus    `xml:"Input" json:"input"`
	Surround     SurroundStatus `xml:"Surround" json:"surround"`
}

// SceneNames holds the scene labels configured on a zone.
type SceneNames struct {
	Scene1 string `xml:"Scene_1" json:"scene_1"`
	Scene2 string `xml:"Scene_2" json:"scene_2"`
	Scene3 string `xml:"Scene_3" json:"scene_3"`
	Scene4 string `xml:"Scene_4" json:"scene_4"`
}

// ZoneNames holds the display names configured on a zone.
type ZoneNames struct {
	Zone  string     `xml:"Zone" json:"zone"`
	Scene SceneNames `xml:"Scene" json:"scene"`
}

// ZoneConfig is a zone's configuration block.
type ZoneConfig struct {
	FeatureExistence    int       `xml:"Feature_Existence" json:"feature_existence"`
	FeatureAvailability string    `xml:"Feature_Availability" json:"feature_availability"`
	Name                ZoneNames `xml:"Name" json:"name"`
	VolumeExistence     string    `xml:"Volume_Existence" json:"volume_existence"`
}

// zoneBody is the per-zone response envelope.
type zoneBody struct {
	BasicStatus *BasicStatus `xml:"Basic_Status"`
	Config      *ZoneConfig  `xml:"Config"`
}

// response is the outer YAMAHA_AV document. Every zone element is declared;
// the receiver fills in only the one the request addressed.
type response struct {
	XMLName  xml.Name  `xml:"YAMAHA_AV"`
	RC       int       `xml:"RC,attr"`
	MainZone *zoneBody `xml:"Main_Zone"`
	Zone2    *zoneBody `xml:"Zone_2"`
	Zone3    *zoneBody `xml:"Zone_3"`
}

// body returns the zone element matching the requested zone, or nil.
func (r *response) body(zone Zone) *zoneBody {
	switch zone {
	case ZoneMain:
		return r.MainZone
	case Zone2:
		return r.Zone2
	case Zone3:
		return r.Zone3
	default:
		return nil
	}
}

// ZoneUpdate is the payload published when a polled zone's status changes.
type ZoneUpdate struct {
	Source string       `json:"source"`
	Zone   Zone         `json:"zone"`
	Status *BasicStatus `json:"status"`
}
