package barcode

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	linkPattern  = regexp.MustCompile(`^(https?://.{3,500}|www\..{3,500}|sms:.*)$`)
	vcardPattern = regexp.MustCompile(`(?s)^.+VCARD.+$`)
)

// IsLink reports whether a decoded payload is a URL-like value the host can
// open directly. vCards are never links even if they embed a URL.
func IsLink(text string) bool {
	return linkPattern.MatchString(text) && !vcardPattern.MatchString(text)
}

// DisplayText normalizes a payload for single-line display. Links are kept
// verbatim, everything else has its line breaks replaced by spaces.
func DisplayText(text string) string {
	text = norm.NFC.String(text)
	if IsLink(text) {
		return text
	}
	return strings.ReplaceAll(text, "\n", " ")
}

var displayNames = map[string]string{
	"AZTEC":             "Aztec",
	"CODABAR":           "Codabar",
	"CODE_39":           "Code 39",
	"CODE_93":           "Code 93",
	"CODE_128":          "Code 128",
	"DATA_MATRIX":       "Data Matrix",
	"EAN_8":             "EAN-8",
	"EAN_13":            "EAN-13",
	"ITF":               "ITF-14",
	"MAXICODE":          "MaxiCode",
	"PDF_417":           "PDF417",
	"QR_CODE":           "QR Code",
	"RSS_14":            "RSS-14",
	"RSS_EXPANDED":      "RSS",
	"UPC_A":             "UPC-A",
	"UPC_E":             "UPC-E",
	"UPC_EAN_EXTENSION": "EAN",
}

// DisplayFormat returns the human readable name of a symbology tag, or the
// empty string for unknown tags.
func DisplayFormat(tag string) string {
	return displayNames[tag]
}
