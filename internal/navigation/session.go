package navigation

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Session event types sent by the client.
const (
	EventOpenSection   = "open_section"
	EventToggleSection = "toggle_section"
	EventToggleItem    = "toggle_item"
	EventToggleGroup   = "toggle_group"
	EventSelect        = "select"
	EventPointer       = "pointer"
	EventCollapse      = "collapse"
	EventLang          = "lang"
)

// Session frame types sent by the server.
const (
	FrameState    = "state"
	FrameNavigate = "navigate"
	FrameError    = "error"
)

// sessionRequest is one client event.
type sessionRequest struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Target string `json:"target,omitempty"` // pointer events only
	Lang   string `json:"lang,omitempty"`
}

// sessionResponse carries the state after an event plus both layouts.
type sessionResponse struct {
	Type    string `json:"type"`
	Href    string `json:"href,omitempty"`
	Error   string `json:"error,omitempty"`
	State   State  `json:"state"`
	Desktop View   `json:"desktop"`
	Mobile  View   `json:"mobile"`
}

// session is one live menu, owned by the connection's read loop.
type session struct {
	menu     *Menu
	pointers *Dispatcher
	lang     string
	navigate string
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("navigation: websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	s := &session{pointers: NewDispatcher(), lang: h.Lang(r)}
	s.menu = NewMenu(h.tree,
		WithPointerSource(s.pointers),
		WithNavigator(NavigatorFunc(func(href string) { s.navigate = href })),
	)
	defer s.menu.Close()

	h.metrics.SessionOpened()
	defer h.metrics.SessionClosed()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("navigation: websocket read", "error", err)
			}
			return
		}

		var req sessionRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			h.send(conn, s.reply(FrameError, "invalid message format"))
			continue
		}

		if errMsg := s.apply(req); errMsg != "" {
			h.send(conn, s.reply(FrameError, errMsg))
			continue
		}
		h.metrics.MenuEvent(req.Type)

		if s.navigate != "" {
			resp := s.reply(FrameNavigate, "")
			resp.Href = s.navigate
			s.navigate = ""
			h.send(conn, resp)
			continue
		}
		h.send(conn, s.reply(FrameState, ""))
	}
}

// apply runs one event against the menu. It returns a message for events
// the session cannot interpret.
func (s *session) apply(req sessionRequest) string {
	switch req.Type {
	case EventOpenSection:
		s.menu.OpenSection(req.ID)
	case EventToggleSection:
		s.menu.ToggleSection(req.ID)
	case EventToggleItem:
		s.menu.ToggleItem(req.ID)
	case EventToggleGroup:
		s.menu.ToggleLeafGroup(req.ID)
	case EventCollapse:
		s.menu.CollapseAll()
	case EventPointer:
		s.pointers.Dispatch(PointerEvent{Target: req.Target})
	case EventSelect:
		if _, ok := s.menu.Select(req.ID); !ok {
			return "not a link: " + req.ID
		}
	case EventLang:
		if req.Lang != LangEnglish && req.Lang != LangArabic {
			return "unsupported language: " + req.Lang
		}
		s.lang = req.Lang
	default:
		return "unknown message type: " + req.Type
	}
	return ""
}

func (s *session) reply(frame, errMsg string) sessionResponse {
	return sessionResponse{
		Type:    frame,
		Error:   errMsg,
		State:   s.menu.State(),
		Desktop: s.menu.Render(s.lang, SurfaceDesktop),
		Mobile:  s.menu.Render(s.lang, SurfaceMobile),
	}
}

func (h *Handler) send(conn *websocket.Conn, resp sessionResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		slog.Warn("navigation: websocket write", "error", err)
	}
}
