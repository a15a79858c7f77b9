package display

// Size of the screen in pixels and in text cells.
const (
	Width   = 128
	Height  = 64
	CellW   = 6
	CellH   = 8
	Columns = Width / CellW
	Rows    = Height / CellH
)

// Display is the screen the menus are drawn on. Nothing is visible until
// Present is called. Positions are text cells, see Columns and Rows.
type Display interface {
	Clear()
	SetCursor(col, row int)
	Print(s string)
	Println(s string)
	DrawIcon(col, row int, icon Icon)
	Present() error
}

// Contraster is implemented by displays whose brightness can be changed.
type Contraster interface {
	SetContrast(level byte) error
}

// Icon is an 8x8 bitmap, one byte per row with the leftmost pixel in the
// high bit. Glyph is what text only displays show instead.
type Icon struct {
	Glyph rune
	Bits  [8]byte
}

func (i Icon) Set(x, y int) bool {
	return i.Bits[y]&(0x80>>uint(x)) != 0
}

var (
	IconRead = Icon{Glyph: 'R', Bits: [8]byte{
		0x3C, 0x42, 0x99, 0xA5, 0xA5, 0x99, 0x42, 0x3C,
	}}
	IconWrite = Icon{Glyph: 'W', Bits: [8]byte{
		0x03, 0x07, 0x0E, 0x1C, 0x38, 0x70, 0xA0, 0xC0,
	}}
	IconEmulate = Icon{Glyph: 'E', Bits: [8]byte{
		0x00, 0x24, 0x42, 0x5A, 0x5A, 0x42, 0x24, 0x00,
	}}
	IconBrute = Icon{Glyph: 'B', Bits: [8]byte{
		0x38, 0x44, 0x44, 0xFE, 0xEE, 0xEE, 0xFE, 0x00,
	}}
	IconManager = Icon{Glyph: 'M', Bits: [8]byte{
		0x70, 0x8F, 0x81, 0x81, 0x81, 0x81, 0xFF, 0x00,
	}}
	IconSettings = Icon{Glyph: 'S', Bits: [8]byte{
		0x18, 0x5A, 0x3C, 0xE7, 0xE7, 0x3C, 0x5A, 0x18,
	}}
	IconCard = Icon{Glyph: '#', Bits: [8]byte{
		0xFF, 0x81, 0xB1, 0xB1, 0x81, 0x8D, 0x81, 0xFF,
	}}
	IconOK = Icon{Glyph: '+', Bits: [8]byte{
		0x00, 0x01, 0x03, 0x06, 0x8C, 0xD8, 0x70, 0x20,
	}}
	IconFail = Icon{Glyph: 'x', Bits: [8]byte{
		0xC3, 0x66, 0x3C, 0x18, 0x18, 0x3C, 0x66, 0xC3,
	}}
)
