package note

// Color is one entry of the presentation palette. The ID is the canonical
// tag stored on notes; the class fields are rendering hints for clients.
type Color struct {
	ID         string `json:"id"`
	Background string `json:"bgClass"`
	Border     string `json:"borderClass"`
	Text       string `json:"textClass"`
}

// Font is one entry of the font set.
type Font struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Name  string `json:"name"`
}

const (
	DefaultColor = "white"
	DefaultFont  = "sans"
)

// Colors is the closed color palette. Stored color tags must be one of
// these IDs; anything else is normalized to DefaultColor at the boundary.
var Colors = []Color{
	{ID: "white", Background: "bg-white", Border: "border-gray-200", Text: "text-gray-800"},
	{ID: "yellow", Background: "bg-yellow-100", Border: "border-yellow-200", Text: "text-yellow-900"},
	{ID: "green", Background: "bg-green-100", Border: "border-green-200", Text: "text-green-900"},
	{ID: "blue", Background: "bg-blue-100", Border: "border-blue-200", Text: "text-blue-900"},
	{ID: "purple", Background: "bg-purple-100", Border: "border-purple-200", Text: "text-purple-900"},
	{ID: "pink", Background: "bg-pink-100", Border: "border-pink-200", Text: "text-pink-900"},
	{ID: "orange", Background: "bg-orange-100", Border: "border-orange-200", Text: "text-orange-900"},
}

// Fonts is the closed font set.
var Fonts = []Font{
	{ID: "sans", Label: "Aa", Name: "Clean"},
	{ID: "serif", Label: "Aa", Name: "Elegant"},
	{ID: "mono", Label: "Aa", Name: "Code"},
}

// ValidColor reports whether id names a palette color.
func ValidColor(id string) bool {
	for _, c := range Colors {
		if c.ID == id {
			return true
		}
	}
	return false
}

// ValidFont reports whether id names a known font.
func ValidFont(id string) bool {
	for _, f := range Fonts {
		if f.ID == id {
			return true
		}
	}
	return false
}

// NormalizeColor maps unknown color tags to the default. Prevents drift
// between stored notes and the available palette.
func NormalizeColor(id string) string {
	if ValidColor(id) {
		return id
	}
	return DefaultColor
}

// NormalizeFont maps unknown font tags to the default.
func NormalizeFont(id string) string {
	if ValidFont(id) {
		return id
	}
	return DefaultFont
}
