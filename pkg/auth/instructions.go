package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteCookieExportGuide explains how to produce the cookies.txt file the feed source reads
func WriteCookieExportGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "COOKIE EXPORT GUIDE")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Some feeds only list every post to a logged-in session. The feed source")
	fmt.Fprintln(w, "reads that session from a Netscape-format cookies.txt file.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 1: Log in to the site in your browser.")
	fmt.Fprintln(w, "STEP 2: Export the site's cookies with a cookies.txt extension,")
	fmt.Fprintln(w, "        or run: gallery-dl --cookies-from-browser firefox --cookies-export cookies.txt <url>")
	fmt.Fprintln(w, "STEP 3: Save the file somewhere private, then run:")
	fmt.Fprintln(w, "        feedmirror auth set-cookies /path/to/cookies.txt")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Only the path is stored in the system keychain; the file stays where it is.")
	fmt.Fprintln(w, "Cookies expire, so export a fresh file when listings start coming back short.")
	fmt.Fprintln(w, rule)
}
