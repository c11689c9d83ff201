package web

import (
	"bytes"
	"html/template"
	"strconv"
	"strings"

	"github.com/jaminalder/tictactoe-timetravel/internal/domain"
)

type templates struct {
	page     *template.Template
	index    *template.Template
	fragment *template.Template
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"iter": func(n int) []int {
			a := make([]int, n)
			for i := range a {
				a[i] = i
			}
			return a
		},
		"add": func(a, b int) int { return a + b },
		"mul": func(a, b int) int { return a * b },
	}
}

func loadTemplates() *templates {
	base := template.Must(template.New("base").Funcs(funcs()).Parse(`<!doctype html><html><head>
<meta charset="utf-8"/>
<title>Tic-tac-toe</title>
<script src="https://unpkg.com/htmx.org@1.9.12"></script>
<script src="https://unpkg.com/htmx.org@1.9.12/dist/ext/sse.js"></script>
<style>` + stylesheet + `</style>
</head><body>{{template "content" .}}</body></html>`))
	// Define the game template within the same set so the page can include it
	template.Must(base.New("game").Parse(gameTemplate))
	index := template.Must(template.Must(base.Clone()).New("content").Parse(`<h1>Tic-tac-toe</h1><form action="/game" method="post"><button>New game</button></form>`))
	page := template.Must(template.Must(base.Clone()).New("content").Parse(`
<div hx-ext="sse" hx-sse="connect:{{.Actions.Events}}">
  <div hx-sse="swap:game" hx-target="#game" hx-swap="outerHTML">{{template "game" .}}</div>
</div>`))
	// Standalone game template used for fragment rendering
	fragment := template.Must(template.New("game_only").Funcs(funcs()).Parse(gameTemplate))
	return &templates{page: page, index: index, fragment: fragment}
}

func renderTemplate(t *template.Template, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// actions is everything a rendered game can ask the server to do.
type actions struct {
	Move   string
	Jump   string
	Sort   string
	Events string
}

func actionsFor(id string) actions {
	base := "/game/" + id
	return actions{
		Move:   base + "/move",
		Jump:   base + "/jump",
		Sort:   base + "/sort",
		Events: base + "/events",
	}
}

type gameView struct {
	ID          string
	Board       domain.Board
	Status      domain.Status
	WinningLine string
	Descending  bool
	Entries     []domain.Entry
	Actions     actions
}

func newGameView(id string, snap domain.Snapshot) gameView {
	v := gameView{
		ID:         id,
		Board:      snap.Board,
		Status:     snap.Status,
		Descending: snap.Descending,
		Entries:    snap.Entries(),
		Actions:    actionsFor(id),
	}
	if snap.Status.State == domain.Won {
		parts := make([]string, len(snap.Status.Line))
		for i, c := range snap.Status.Line {
			parts[i] = strconv.Itoa(c)
		}
		v.WinningLine = strings.Join(parts, ",")
	}
	return v
}

// renderGame renders the #game fragment for a snapshot. It is the only view of
// game state; the page, the intent responses and the event stream all use it.
func (t *templates) renderGame(id string, snap domain.Snapshot) ([]byte, error) {
	return renderTemplate(t.fragment, newGameView(id, snap))
}

const gameTemplate = `
<div id="game" class="game">
  <div class="game-board">
  {{range $r := iter 3}}
    <div class="board-row">
    {{range $c := iter 3}}{{$i := add (mul $r 3) $c}}
      <form hx-post="{{$.Actions.Move}}" hx-target="#game" hx-swap="outerHTML" action="{{$.Actions.Move}}" method="post">
        <input type="hidden" name="i" value="{{$i}}">
        <button type="submit" class="square {{if $.Status.Winning $i}}square--winning{{else}}square--normal{{end}}">{{index $.Board $i}}</button>
      </form>
    {{end}}
    </div>
  {{end}}
  </div>
  <div class="game-info">
    <div class="status">{{.Status}}{{if .WinningLine}} @ squares: {{.WinningLine}}{{end}}</div>
    <form hx-post="{{.Actions.Sort}}" hx-target="#game" hx-swap="outerHTML" action="{{.Actions.Sort}}" method="post">
      <button type="submit">Sort by {{if .Descending}}oldest first{{else}}latest first{{end}}</button>
    </form>
    <ol>
    {{range .Entries}}
      <li>
        <form hx-post="{{$.Actions.Jump}}" hx-target="#game" hx-swap="outerHTML" action="{{$.Actions.Jump}}" method="post">
          <input type="hidden" name="step" value="{{.Step}}">
          <button type="submit">{{if .Current}}<b>{{.Description}}</b>{{else}}{{.Description}}{{end}}</button>
        </form>
      </li>
    {{end}}
    </ol>
  </div>
</div>
`

const stylesheet = `
body { font: 14px "Century Gothic", Futura, sans-serif; margin: 20px; }
ol, ul { padding-left: 30px; }
form { display: inline; }
.board-row:after { clear: both; content: ""; display: table; }
.square { background: #fff; border: 1px solid #999; float: left; font-size: 24px; font-weight: bold;
  line-height: 34px; height: 34px; margin-right: -1px; margin-top: -1px; padding: 0; text-align: center; width: 34px; }
.square--winning { background: #9f9; }
.square:focus { outline: none; }
.game { display: flex; flex-direction: row; }
.game-info { margin-left: 20px; }
.status { margin-bottom: 10px; }
`
