package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fogleman/gg"

	"dkjr-client/internal/world"
)

// Playfield size and sprite boxes in server coordinates.
const (
	FieldWidth  = 960.0
	FieldHeight = 540.0

	playerW, playerH     = 24.0, 28.0
	creatureW, creatureH = 30.0, 30.0
	itemW, itemH         = 20.0, 20.0
	actorW, actorH       = 40.0, 40.0
)

var (
	colorBackground = color.RGBA{12, 12, 28, 255}
	colorPlayer     = color.RGBA{139, 90, 43, 255}
	colorRed        = color.RGBA{255, 62, 62, 255}
	colorBlue       = color.RGBA{0, 140, 255, 255}
	colorDead       = color.RGBA{90, 90, 90, 255}
	colorActor      = color.RGBA{220, 30, 30, 255}
	colorText       = color.RGBA{240, 240, 240, 255}
)

// itemColors by category; unknown categories are drawn white.
var itemColors = map[string]string{
	"BANANA":  "#ffe135",
	"NARANJA": "#ff9500",
	"CEREZA":  "#d2042d",
}

// Rasterizer draws snapshots into an image. It reuses one drawing context
// and is safe for concurrent use.
type Rasterizer struct {
	mu     sync.Mutex
	dc     *gg.Context
	width  int
	height int
	scaleX float64
	scaleY float64
	font   string
}

// NewRasterizer creates a rasterizer producing width x height images.
func NewRasterizer(width, height int) *Rasterizer {
	if width <= 0 {
		width = int(FieldWidth)
	}
	if height <= 0 {
		height = int(FieldHeight)
	}
	r := &Rasterizer{
		dc:     gg.NewContext(width, height),
		width:  width,
		height: height,
		scaleX: float64(width) / FieldWidth,
		scaleY: float64(height) / FieldHeight,
		font:   getFontPath(),
	}
	if r.font != "" {
		if err := r.dc.LoadFontFace(r.font, 14); err != nil {
			r.font = ""
		}
	}
	return r
}

// Render draws snap and returns a copy of the image.
func (r *Rasterizer) Render(snap *world.Snapshot) image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.draw(snap)
	src := r.dc.Image().(*image.RGBA)
	img := image.NewRGBA(src.Rect)
	copy(img.Pix, src.Pix)
	return img
}

// EncodePNG draws snap and writes it to w as PNG.
func (r *Rasterizer) EncodePNG(w io.Writer, snap *world.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.draw(snap)
	return r.dc.EncodePNG(w)
}

func (r *Rasterizer) draw(snap *world.Snapshot) {
	dc := r.dc

	dc.Push()
	dc.SetColor(colorBackground)
	dc.Clear()

	dc.Scale(r.scaleX, r.scaleY)
	r.drawItems(snap.Items)
	r.drawCreatures(snap.Creatures)
	if snap.Actor.Visible {
		dc.SetColor(colorActor)
		dc.DrawRectangle(snap.Actor.X, snap.Actor.Y, actorW, actorH)
		dc.Fill()
	}
	r.drawPlayers(snap.Players)
	dc.Pop()

	r.drawHUD(snap)
}

func (r *Rasterizer) drawPlayers(players []world.Player) {
	dc := r.dc
	for _, p := range players {
		if !p.Active {
			continue
		}
		dc.SetColor(colorPlayer)
		dc.DrawRectangle(p.X, p.Y, playerW, playerH)
		dc.Fill()

		// Outline marks the on-rope state
		if p.OnRope {
			dc.SetColor(color.White)
			dc.SetLineWidth(2)
			dc.DrawRectangle(p.X, p.Y, playerW, playerH)
			dc.Stroke()
		}
	}
}

func (r *Rasterizer) drawCreatures(creatures []world.Creature) {
	dc := r.dc
	for _, c := range creatures {
		switch {
		case !c.Alive:
			dc.SetColor(colorDead)
		case c.Kind == world.CreatureBlue:
			dc.SetColor(colorBlue)
		default:
			dc.SetColor(colorRed)
		}
		dc.DrawRoundedRectangle(c.X, c.Y, creatureW, creatureH, 6)
		dc.Fill()
	}
}

func (r *Rasterizer) drawItems(items []world.Item) {
	dc := r.dc
	for _, it := range items {
		if !it.Active {
			continue
		}
		dc.SetColor(parseHexColor(itemColors[it.Category]))
		dc.DrawCircle(it.X+itemW/2, it.Y+itemH/2, itemW/2)
		dc.Fill()
	}
}

func (r *Rasterizer) drawHUD(snap *world.Snapshot) {
	dc := r.dc
	dc.SetColor(colorText)

	y := 18.0
	dc.DrawString(fmt.Sprintf("LEVEL %d   FRAME %d", snap.Level.Index, snap.Frame), 10, y)
	for _, p := range snap.Players {
		y += 18
		dc.DrawString(fmt.Sprintf("P%d  LIVES %d  SCORE %d", p.ID, p.Lives, p.Score), 10, y)
	}
}

// Size returns the output image dimensions.
func (r *Rasterizer) Size() (int, int) {
	return r.width, r.height
}

func parseHexColor(hex string) color.RGBA {
	if len(hex) != 7 || hex[0] != '#' {
		return color.RGBA{255, 255, 255, 255}
	}

	var r, g, b uint8
	fmt.Sscanf(hex[1:], "%02x%02x%02x", &r, &g, &b)
	return color.RGBA{r, g, b, 255}
}

func getFontPath() string {
	paths := []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSansMono.ttf",
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"C:\\Windows\\Fonts\\consola.ttf",
		"/System/Library/Fonts/Menlo.ttc",
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	matches, _ := filepath.Glob("*.ttf")
	if len(matches) > 0 {
		return matches[0]
	}
	return ""
}
