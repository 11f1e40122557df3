package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"driftscape.app/internal/protocol"
	"driftscape.app/internal/sim/config"
	"driftscape.app/internal/sim/engine"
)

const (
	callTimeout = 5 * time.Second

	defaultRequestRate  = 20 // per second
	defaultRequestBurst = 40
)

// Server exposes the engine API to a hosting UI over a websocket.
type Server struct {
	engine *engine.Engine
	log    *log.Logger

	upgrader websocket.Upgrader

	// Per-connection request budget.
	requestRate  rate.Limit
	requestBurst int
}

func NewServer(e *engine.Engine, logger *log.Logger) *Server {
	s := &Server{
		engine: e,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		requestRate:  defaultRequestRate,
		requestBurst: defaultRequestBurst,
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Subscribe before the handshake so no event between WELCOME and the
		// writer start is lost.
		events, unsubscribe := s.engine.Subscribe()
		defer unsubscribe()

		session := s.handshake(conn)
		if session == "" {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		out := make(chan []byte, 64)
		limiter := rate.NewLimiter(s.requestRate, s.requestBurst)

		// Writer goroutine. Closing the conn on exit unblocks the reader.
		go func() {
			defer conn.Close()
			for {
				var b []byte
				select {
				case <-ctx.Done():
					return
				case b = <-out:
				case ev, ok := <-events:
					if !ok {
						_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "engine shut down"), time.Now().Add(time.Second))
						cancel()
						return
					}
					b, _ = json.Marshal(eventMsg(ev))
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var res protocol.ResultMsg
			if limiter.Allow() {
				res = s.dispatch(ctx, msg)
			} else {
				res = rateLimited(msg)
			}
			b, _ := json.Marshal(res)
			select {
			case out <- b:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}
		s.logf("session %s closed", session)
	}
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

func (s *Server) handshake(conn *websocket.Conn) (session string) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return ""
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return ""
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return ""
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return ""
	}

	session = uuid.NewString()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       session,
		Params:          paramInfos(),
		Ready:           s.engine.Metrics().Ready,
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if err := s.engine.Do(ctx, func(e *engine.Engine) {
		welcome.Tick = e.CurrentTick()
		welcome.Config = e.Config()
		welcome.Presets = e.Presets()
		welcome.SettingsOpen = e.SettingsPanelOpen()
		welcome.Notices = e.Notices()
	}); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "engine unavailable"), time.Now().Add(time.Second))
		return ""
	}
	if err := writeJSON(conn, welcome); err != nil {
		return ""
	}
	name := hello.ClientName
	if name == "" {
		name = "client"
	}
	s.logf("session %s opened by %s", session, name)
	return session
}

func paramInfos() []protocol.ParamInfo {
	var out []protocol.ParamInfo
	for _, d := range []config.Domain{config.DomainTerrain, config.DomainStar} {
		for _, name := range config.Params(d) {
			eff, _ := config.EffectOf(d, name)
			out = append(out, protocol.ParamInfo{Domain: string(d), Name: name, Effect: eff.String()})
		}
	}
	return out
}

func (s *Server) dispatch(ctx context.Context, raw []byte) protocol.ResultMsg {
	res := protocol.ResultMsg{Type: protocol.TypeResult, ProtocolVersion: protocol.Version}
	base, err := protocol.DecodeBase(raw)
	if err != nil {
		res.Code, res.Message = protocol.ErrProtoBadRequest, "malformed JSON"
		return res
	}
	res.Ref, res.For = base.Ref, base.Type
	if base.ProtocolVersion != "" && base.ProtocolVersion != protocol.Version {
		res.Code, res.Message = protocol.ErrProtoBadRequest, "bad protocol_version"
		return res
	}
	if base.Type == protocol.TypeHello {
		res.Code, res.Message = protocol.ErrProtoBadRequest, "session already established"
		return res
	}
	if err := protocol.ValidateClient(base.Type, raw); err != nil {
		res.Code, res.Message = protocol.ErrBadRequest, err.Error()
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	var out outcome
	call := func(fn func(e *engine.Engine) outcome) {
		// The engine goroutine may still run fn after Do gives up, so its
		// result only travels back over ch.
		ch := make(chan outcome, 1)
		if err := s.engine.Do(ctx, func(e *engine.Engine) {
			o := fn(e)
			o.tick = e.CurrentTick()
			ch <- o
		}); err != nil {
			out = outcome{err: err}
			return
		}
		out = <-ch
	}

	switch base.Type {
	case protocol.TypeSetParam:
		var m protocol.SetParamMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			res.Code, res.Message = protocol.ErrBadRequest, err.Error()
			return res
		}
		call(func(e *engine.Engine) outcome {
			eff, err := e.SetParam(config.Domain(m.Domain), m.Name, m.Value)
			if err != nil {
				return outcome{err: err}
			}
			return outcome{effect: eff.String()}
		})
	case protocol.TypeApplyPreset:
		var m protocol.ApplyPresetMsg
		_ = json.Unmarshal(raw, &m)
		call(func(e *engine.Engine) outcome {
			if err := e.ApplyQualityPreset(m.Name); err != nil {
				return outcome{err: err}
			}
			return outcome{effect: config.RequiresRestart.String()}
		})
	case protocol.TypeResetDefaults:
		call(func(e *engine.Engine) outcome {
			if err := e.ResetToDefaults(); err != nil {
				return outcome{err: err}
			}
			return outcome{effect: config.RequiresRestart.String()}
		})
	case protocol.TypeSettingsPanel:
		var m protocol.SettingsPanelMsg
		_ = json.Unmarshal(raw, &m)
		call(func(e *engine.Engine) outcome {
			if m.Open {
				e.OpenSettingsPanel()
			} else {
				e.CloseSettingsPanel()
			}
			return outcome{}
		})
	case protocol.TypeResize:
		var m protocol.ResizeMsg
		_ = json.Unmarshal(raw, &m)
		call(func(e *engine.Engine) outcome { return outcome{err: e.Resize(m.Width, m.Height)} })
	}

	res.Tick = out.tick
	if out.err != nil {
		res.Code, res.Message = codeFor(out.err), out.err.Error()
		return res
	}
	res.Effect = out.effect
	res.OK = true
	return res
}

// outcome is what one engine call hands back to dispatch.
type outcome struct {
	effect string
	tick   uint64
	err    error
}

func rateLimited(raw []byte) protocol.ResultMsg {
	res := protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		Code:            protocol.ErrRateLimited,
		Message:         "too many requests",
	}
	if base, err := protocol.DecodeBase(raw); err == nil {
		res.Ref, res.For = base.Ref, base.Type
	}
	return res
}

func codeFor(err error) string {
	var ve *config.ValidationError
	switch {
	case errors.Is(err, config.ErrUnknownParam):
		return protocol.ErrUnknownParam
	case errors.As(err, &ve) && ve.Domain == config.DomainQuality:
		return protocol.ErrUnknownPreset
	case errors.As(err, &ve), errors.Is(err, engine.ErrInvalidViewport):
		return protocol.ErrInvalidValue
	case errors.Is(err, engine.ErrClosed), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return protocol.ErrUnavailable
	default:
		return protocol.ErrInternal
	}
}

func eventMsg(ev engine.Event) protocol.EventMsg {
	return protocol.EventMsg{
		Type:            protocol.TypeEvent,
		ProtocolVersion: protocol.Version,
		Kind:            string(ev.Kind),
		Tick:            ev.Tick,
		Message:         ev.Message,
		Config:          ev.Config,
		Open:            ev.Open,
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
