// Package fingerprint builds the synthetic device-identity hash the Kambi
// session handshake expects. The hash input mirrors the attribute key a
// fingerprintjs-instrumented browser would produce, so the same account keeps
// presenting the same device across runs.
package fingerprint

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spaolacci/murmur3"
)

// ErrUnsupportedRegion is returned for region codes without a known timezone.
var ErrUnsupportedRegion = errors.New("unsupported region code")

const (
	hashSeed  = 31
	separator = "~~~"
)

// UserAgents are the desktop browser identities an account may present.
var UserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:60.0) Gecko/20100101 Firefox/60.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.12; rv:58.0) Gecko/20100101 Firefox/58.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.8; rv:25.0) Gecko/20100101 Firefox/25.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.12; rv:42.0) Gecko/20100101 Firefox/42.0",
	"Mozilla/5.0 (X11; Linux i686; rv:30.0) Gecko/20100101 Firefox/30.0",
	"Mozilla/5.0 (Windows NT 6.1; Win64; x64; rv:22.0) Gecko/20130328 Firefox/22.0",
	"Mozilla/5.0 (Windows NT 6.1; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/62.0.3202.62 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_10_2) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/40.0.2214.38 Safari/537.36",
	"Mozilla/5.0 (X11; U; Linux x86_64; en-US) AppleWebKit/540.0 (KHTML,like Gecko) Chrome/9.1.0.0 Safari/540.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/48.0.2564.82 Safari/537.36 Edge/14.14359",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/46.0.2486.0 Safari/537.36 Edge/13.10547",
	"Mozilla/5.0 (X11; CrOS x86_64 8172.45.0) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/51.0.2704.64 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/42.0.2311.135 Safari/537.36 Edge/12.246",
}

// Resolutions are the screen sizes an account may present.
var Resolutions = [][2]int{
	{1536, 864},
	{1600, 900},
	{1920, 1080},
	{1280, 720},
}

// regionTimezones maps a region code to its primary IANA timezone. Covers the
// regions the betting client supports plus common proxy egress countries.
var regionTimezones = map[string]string{
	"at": "Europe/Vienna",
	"be": "Europe/Brussels",
	"ch": "Europe/Zurich",
	"cz": "Europe/Prague",
	"de": "Europe/Berlin",
	"dk": "Europe/Copenhagen",
	"ee": "Europe/Tallinn",
	"es": "Europe/Madrid",
	"fi": "Europe/Helsinki",
	"fr": "Europe/Paris",
	"gb": "Europe/London",
	"gr": "Europe/Athens",
	"hu": "Europe/Budapest",
	"ie": "Europe/Dublin",
	"it": "Europe/Rome",
	"lt": "Europe/Vilnius",
	"lv": "Europe/Riga",
	"nl": "Europe/Amsterdam",
	"no": "Europe/Oslo",
	"pl": "Europe/Warsaw",
	"pt": "Europe/Lisbon",
	"ro": "Europe/Bucharest",
	"se": "Europe/Stockholm",
	"us": "America/New_York",
}

const fontList = "Arial;Arial Rounded MT Bold;Book Antiqua;Bookman Old Style;Calibri;Cambria;Cambria Math;Century;Century Gothic;Century Schoolbook;Comic Sans MS;Consolas;Courier;Courier New;Garamond;Georgia;Helvetica;Impact;Lucida Bright;Lucida Calligraphy;Lucida Console;Lucida Fax;Lucida Handwriting;Lucida Sans;Lucida Sans Typewriter;Lucida Sans Unicode;Microsoft Sans Serif;Monotype Corsiva;MS Gothic;MS PGothic;MS Reference Sans Serif;MS Sans Serif;MS Serif;Palatino Linotype;Segoe Print;Segoe Script;Segoe UI;Segoe UI Light;Segoe UI Semibold;Segoe UI Symbol;Tahoma;Times;Times New Roman;Trebuchet MS;Verdana"

// Generate returns the 32-hex-digit fingerprint for the given browser
// identity. Identical inputs always yield the identical output.
func Generate(userAgent string, resolution [2]int, regionCode string) (string, error) {
	offset, err := utcOffsetMinutes(regionCode, time.Now())
	if err != nil {
		return "", err
	}
	key := buildKey(userAgent, resolution, offset)
	return Hash128Hex(key), nil
}

// Hash128Hex computes the MurmurHash3 x64 128 digest of key with the fixed
// seed and hex-encodes the four 32-bit hash words, each zero-padded to 8
// digits. This matches the fingerprintjs x64hash128 reference output.
func Hash128Hex(key string) string {
	h1, h2 := murmur3.Sum128WithSeed([]byte(key), hashSeed)
	return fmt.Sprintf("%016x%016x", h1, h2)
}

// utcOffsetMinutes returns the region's current UTC offset in minutes with
// the sign inverted, matching the JS getTimezoneOffset convention (UTC+2
// reports -120).
func utcOffsetMinutes(regionCode string, at time.Time) (int, error) {
	tz, ok := regionTimezones[strings.ToLower(regionCode)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedRegion, regionCode)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return 0, fmt.Errorf("load timezone %s: %w", tz, err)
	}
	_, offsetSec := at.In(loc).Zone()
	return -offsetSec / 60, nil
}

func buildKey(userAgent string, resolution [2]int, tzOffsetMin int) string {
	res := fmt.Sprintf("%d;%d", resolution[0], resolution[1])
	parts := []string{
		userAgent,
		"en-US",
		"24",
		formatRatio(1920.0 / float64(resolution[0])),
		res,
		res,
		strconv.Itoa(tzOffsetMin),
		"1",
		"1",
		"1",
		"unknown",
		platformFromUA(userAgent),
		"unspecified",
		"",
		"",
		"",
		"false",
		"false",
		"false",
		"false",
		"false",
		"0;false;false",
		fontList,
	}
	return strings.Join(parts, separator)
}

// formatRatio renders the pixel ratio the way the browser collector did:
// integral ratios keep one decimal place ("1.0"), others use the shortest
// representation.
func formatRatio(r float64) string {
	if r == math.Trunc(r) {
		return strconv.FormatFloat(r, 'f', 1, 64)
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

func platformFromUA(userAgent string) string {
	switch {
	case strings.Contains(userAgent, "Mac"):
		return "Mac"
	case strings.Contains(userAgent, "Windows"):
		return "Win64"
	default:
		return "Linux"
	}
}

// PickUserAgent deterministically selects a user agent for an account.
func PickUserAgent(username, regionCode string) string {
	return UserAgents[pick(username, regionCode, len(UserAgents))]
}

// PickResolution deterministically selects a screen resolution for an account.
func PickResolution(username, regionCode string) [2]int {
	return Resolutions[pick(username, regionCode, len(Resolutions))]
}

func pick(username, regionCode string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(username))
	h.Write([]byte{'|'})
	h.Write([]byte(strings.ToLower(regionCode)))
	return int(h.Sum32() % uint32(n))
}
