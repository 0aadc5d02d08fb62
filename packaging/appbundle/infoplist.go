package appbundle

import (
	"bytes"
	"encoding/xml"
	"strings"
)

type plistValues struct {
	AppName  string
	BundleID string
	Version  string
	HasIcon  bool
}

// renderInfoPlist builds the Info.plist of a status bar application.
// LSUIElement keeps the app out of the Dock.
func renderInfoPlist(v plistValues) string {
	version := v.Version
	if version == "" {
		version = "1.0"
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
`)
	writeString(&b, "CFBundleExecutable", v.AppName)
	writeString(&b, "CFBundleIdentifier", v.BundleID)
	writeString(&b, "CFBundleName", v.AppName)
	writeString(&b, "CFBundleDisplayName", v.AppName)
	writeString(&b, "CFBundleVersion", version)
	writeString(&b, "CFBundleShortVersionString", version)
	writeString(&b, "CFBundlePackageType", "APPL")
	writeString(&b, "CFBundleSignature", "????")
	writeString(&b, "CFBundleInfoDictionaryVersion", "6.0")
	if v.HasIcon {
		writeString(&b, "CFBundleIconFile", "AppIcon")
	}
	writeBool(&b, "LSUIElement", true)
	writeBool(&b, "NSHighResolutionCapable", true)
	b.WriteString("</dict>\n</plist>\n")
	return b.String()
}

func writeString(b *strings.Builder, key, value string) {
	b.WriteString("\t<key>" + escapeXML(key) + "</key>\n")
	b.WriteString("\t<string>" + escapeXML(value) + "</string>\n")
}

func writeBool(b *strings.Builder, key string, value bool) {
	b.WriteString("\t<key>" + escapeXML(key) + "</key>\n")
	if value {
		b.WriteString("\t<true/>\n")
	} else {
		b.WriteString("\t<false/>\n")
	}
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	// EscapeText only fails if the writer fails.
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
