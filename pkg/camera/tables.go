package camera

import "regexp"

// BrandPattern is one entry of the ordered brand dictionary. Patterns are
// lowercase substrings matched against lowercased response bodies and
// headers; the first brand with any matching pattern wins.
type BrandPattern struct {
	Brand    string
	Patterns []string
}

// DefaultBrandPatterns is the built-in ordered brand dictionary.
var DefaultBrandPatterns = []BrandPattern{
	{Brand: "hikvision", Patterns: []string{"hikvision", "hik-connect", "ivms", "ds-2cd"}},
	{Brand: "dahua", Patterns: []string{"dahua", "dh-ipc", "webservice@dahua"}},
	{Brand: "axis", Patterns: []string{"axis", "vapix"}},
	{Brand: "foscam", Patterns: []string{"foscam", "ipcam client"}},
	{Brand: "uniview", Patterns: []string{"uniview", "unv-"}},
	{Brand: "reolink", Patterns: []string{"reolink"}},
	{Brand: "amcrest", Patterns: []string{"amcrest"}},
	{Brand: "vivotek", Patterns: []string{"vivotek"}},
	{Brand: "tp-link", Patterns: []string{"tapo", "tp-link camera"}},
	{Brand: "wyze", Patterns: []string{"wyze"}},
}

// genericKeywords classify an unbranded response as a generic camera.
var genericKeywords = []string{"camera", "ipcam", "surveillance", "nvr", "video"}

// GenericBrand is assigned when only generic keywords match.
const GenericBrand = "Generic"

// modelPatterns are per-brand regex families for model extraction, applied to
// the lowercased body. Group 1 captures the model.
var modelPatterns = map[string][]*regexp.Regexp{
	"hikvision": {
		regexp.MustCompile(`(ds-[a-z0-9]{2,}[a-z0-9-]*)`),
		regexp.MustCompile(`model["':\s]+([a-z0-9-]{4,})`),
	},
	"dahua": {
		regexp.MustCompile(`(dh-[a-z0-9-]{4,})`),
		regexp.MustCompile(`(ipc-[a-z0-9-]{3,})`),
	},
	"axis": {
		regexp.MustCompile(`axis[\s-]([mpq][0-9]{4}(-[a-z]+)?)`),
	},
	"foscam": {
		regexp.MustCompile(`(fi[0-9]{4,}[a-z]*)`),
	},
	"reolink": {
		regexp.MustCompile(`(rlc-[0-9]{3,}[a-z]*)`),
	},
	"amcrest": {
		regexp.MustCompile(`(ip[0-9]+m-[a-z0-9]+)`),
	},
}

// firmwarePatterns extract firmware versions, shared across brands with a
// couple of brand-specific forms first.
var firmwarePatterns = []*regexp.Regexp{
	regexp.MustCompile(`firmware[^0-9v]{0,20}(v?[0-9]+\.[0-9]+(?:\.[0-9]+){0,2})`),
	regexp.MustCompile(`version["':\s]+(v?[0-9]+\.[0-9]+(?:\.[0-9]+){0,2})`),
	regexp.MustCompile(`build["':\s]+([0-9]{6,})`),
}

// RTSPTemplates maps brands to stream path templates. "{ip}" is substituted.
type RTSPTemplates map[string][]string

// DefaultRTSPTemplates is the built-in brand to RTSP template map.
var DefaultRTSPTemplates = RTSPTemplates{
	"hikvision": {
		"rtsp://{ip}:554/Streaming/Channels/101",
		"rtsp://{ip}:554/Streaming/Channels/102",
		"rtsp://{ip}:554/h264/ch1/main/av_stream",
	},
	"dahua": {
		"rtsp://{ip}:554/cam/realmonitor?channel=1&subtype=0",
		"rtsp://{ip}:554/cam/realmonitor?channel=1&subtype=1",
	},
	"axis": {
		"rtsp://{ip}:554/axis-media/media.amp",
		"rtsp://{ip}:554/mpeg4/media.amp",
	},
	"foscam": {
		"rtsp://{ip}:554/videoMain",
		"rtsp://{ip}:554/videoSub",
	},
	"uniview": {
		"rtsp://{ip}:554/media/video1",
		"rtsp://{ip}:554/media/video2",
	},
	"reolink": {
		"rtsp://{ip}:554/h264Preview_01_main",
		"rtsp://{ip}:554/h264Preview_01_sub",
	},
	"amcrest": {
		"rtsp://{ip}:554/cam/realmonitor?channel=1&subtype=0",
	},
	"vivotek": {
		"rtsp://{ip}:554/live.sdp",
	},
}

// genericRTSPTemplates is the fallback for unknown/generic brands.
var genericRTSPTemplates = []string{
	"rtsp://{ip}:554/live",
	"rtsp://{ip}:554/stream1",
	"rtsp://{ip}:554/video1",
}

// onvifEnvelope is the unauthenticated GetCapabilities request body.
const onvifEnvelope = `<?xml version="1.0" encoding="UTF-8"?>
<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope">
  <s:Body>
    <GetCapabilities xmlns="http://www.onvif.org/ver10/device/wsdl">
      <Category>All</Category>
    </GetCapabilities>
  </s:Body>
</s:Envelope>`
