package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/pkg/browser"

	"voxplaces/clipboard"
	"voxplaces/log"
)

func init() {
	// the handler's own output would land in the TUI
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
}

// openableSchemes are the link kinds a place result can carry.
var openableSchemes = map[string]bool{
	"http": true, "https": true, "tel": true, "geo": true, "maps": true, "mailto": true,
}

var openBrowser = browser.OpenURL

func checkLink(uri string) error {
	u, err := url.Parse(uri)
	if err != nil {
		return err
	}
	if !openableSchemes[strings.ToLower(u.Scheme)] {
		return fmt.Errorf("refusing to open %q link", u.Scheme)
	}
	return nil
}

// openURL hands a directions, tel: or website link to the desktop.
func openURL(uri string) error {
	if err := checkLink(uri); err != nil {
		log.Warnf("open %s: %v", uri, err)
		return err
	}
	if err := openBrowser(uri); err != nil {
		log.Warnf("open %s: %v", uri, err)
		return err
	}
	log.Info("open_link: " + uri)
	return nil
}

func copyLink(uri string) error {
	if !clipboard.Available() {
		return fmt.Errorf("no clipboard available")
	}
	if err := clipboard.Copy(uri); err != nil {
		return err
	}
	log.Info("copy_link: " + uri)
	return nil
}
