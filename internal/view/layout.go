package view

import "github.com/HerbHall/welfaredesk/pkg/models"

// liveScript connects the page to the workspace's live channel: search
// keystrokes go out, table and toast repaints come back.
const liveScript = `(function(){
var proto = location.protocol === "https:" ? "wss://" : "ws://";
var ws = new WebSocket(proto + location.host + "/ws");
ws.onmessage = function(ev){
  var m = JSON.parse(ev.data);
  if (!m.target || !m.html) { return; }
  var el = document.getElementById(m.target);
  if (el) { el.outerHTML = m.html; }
};
document.addEventListener("input", function(ev){
  var t = ev.target;
  if (!t.dataset || !t.dataset.liveSearch) { return; }
  ws.send(JSON.stringify({type:"search", entity:t.dataset.liveSearch, value:t.value}));
});
document.addEventListener("keydown", function(ev){
  var t = ev.target;
  if (ev.key !== "Enter" || !t.dataset || !t.dataset.liveSearch) { return; }
  ev.preventDefault();
  ws.send(JSON.stringify({type:"search", entity:t.dataset.liveSearch, value:t.value, enter:true}));
});
})();`

// PageData is what a full admin page shows.
type PageData struct {
	Title     string
	Entities  []models.Entity
	Active    string
	Collapsed bool
	Content   *Node
	Modals    *Node
	Toasts    *Node
}

// Page renders a full admin document.
func Page(d PageData) *Node {
	nav := El("ul", nil)
	for _, e := range d.Entities {
		class := "nav-item"
		if e.Name == d.Active {
			class += " active"
		}
		nav.Children = append(nav.Children, El("li", A("class", class),
			El("a", A("href", entityURL(e.Name)), Text(e.Label))))
	}
	sidebarClass := "sidebar"
	if d.Collapsed {
		sidebarClass += " collapsed"
	}
	return Fragment(
		Raw("<!DOCTYPE html>"),
		El("html", A("lang", "en"),
			El("head", nil,
				El("meta", A("charset", "utf-8")),
				El("meta", A("name", "viewport", "content", "width=device-width, initial-scale=1")),
				El("title", nil, Text(d.Title+" · WelfareDesk")),
			),
			El("body", nil,
				El("aside", A("id", "sidebar", "class", sidebarClass),
					El("form", A("method", "post", "action", Base+"/sidebar"),
						El("button", A("type", "submit", "class", "btn btn-link", "aria-label", "Toggle sidebar"), Text("☰"))),
					El("nav", A("aria-label", "Tables"), nav),
				),
				El("main", A("id", "content"), d.Content),
				El("div", A("id", "modals"), d.Modals),
				d.Toasts,
				El("script", nil, Raw(liveScript)),
			),
		),
	)
}
