package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"wifibridge/internal/control"
	"wifibridge/internal/core/dispose"
	apperrors "wifibridge/internal/errors"
	"wifibridge/internal/gateway"
	"wifibridge/internal/relay"
	"wifibridge/internal/utils"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const shutdownTimeout = 5 * time.Second

// Service 桥接代理服务
// 本地监听，把控制页、视频流、控制会话统一暴露给同一网络的浏览器，
// 其余请求原样转发到网关。
type Service struct {
	dispose.Dispose

	config     *Config
	client     *gateway.Client
	relay      *relay.Relay
	translator *control.Translator

	router *mux.Router
	server *http.Server
	subs   *subscriberRegistry

	upgrader websocket.Upgrader
}

// NewService 创建代理服务
func NewService(ctx context.Context, config *Config, client *gateway.Client) *Service {
	if config == nil {
		config = DefaultConfig()
	}

	mediaURL := config.MediaURL(client.GatewayHost())

	s := &Service{
		config:     config,
		client:     client,
		relay: relay.NewRelay(ctx, relay.NewGatewaySource(client, mediaURL)),
		translator: control.NewTranslator(ctx, control.ForwarderFunc(
			func(ctx context.Context, cmd control.Command) error {
				return client.SendCommand(ctx, cmd.Values())
			})),
		router:     mux.NewRouter(),
		subs:       newSubscriberRegistry(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 控制页可能从其他端口打开
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.setupRoutes()

	// 视频流和 WebSocket 均为长连接，不能设置写超时
	s.server = &http.Server{
		Addr:              config.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.SetCtx(ctx, s.onClose)
	return s
}

func (s *Service) setupRoutes() {
	s.router.Use(loggingMiddleware)
	s.router.Use(corsMiddleware(s.config.CORS))

	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	s.router.HandleFunc("/stream", s.handleStream).Methods(http.MethodGet)
	s.router.HandleFunc("/control", s.handleControl).Methods(http.MethodGet)
	s.router.HandleFunc("/subscribers", s.handleSubscribers).Methods(http.MethodGet)

	// 其余请求原样转发到网关
	s.router.PathPrefix("/").HandlerFunc(s.handlePassthrough)
}

// Start 启动 HTTP 监听，阻塞直到服务退出
func (s *Service) Start() error {
	utils.Infof("Proxy service listening on %s (gateway %s via %s)",
		s.config.ListenAddr, s.client.GatewayHost(), s.client.LocalIP())

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("proxy service: %w", err)
	}
	return nil
}

// SubscriberCount 当前订阅者数量
func (s *Service) SubscriberCount() int {
	return s.subs.Count()
}

func (s *Service) onClose() error {
	utils.Infof("Proxy service: shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		utils.Warnf("Proxy service: shutdown: %v", err)
	}

	s.translator.Close()
	s.relay.Close()
	return nil
}

// handleIndex 内置控制页
func (s *Service) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, controlPage)
}

// handleStream 视频流分发
// 每个客户端一个订阅，帧以 multipart/x-mixed-replace 逐帧推送。
func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	sub, err := s.relay.Subscribe()
	if err != nil {
		w.Header().Set("Retry-After", "2")
		respondError(w, http.StatusBadGateway, "stream unavailable")
		return
	}
	defer sub.Close()

	s.subs.Add(sub.ID, KindStream, r.RemoteAddr)
	defer s.subs.Remove(sub.ID)

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// 首帧到达前不写响应头，上游失败时还能回 502
	headerSent := false

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-sub.Frames():
			if !ok {
				if !headerSent {
					w.Header().Set("Retry-After", "2")
					respondError(w, http.StatusBadGateway, "upstream stream lost")
				}
				return
			}
			if !headerSent {
				w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
				w.Header().Set("Cache-Control", "no-cache")
				w.WriteHeader(http.StatusOK)
				headerSent = true
			}
			if err := writeFramePart(w, frame.Payload); err != nil {
				utils.Debugf("Stream subscriber %s: write failed: %v", sub.ID, err)
				return
			}
			flusher.Flush()
			s.subs.Touch(sub.ID)
		}
	}
}

func writeFramePart(w io.Writer, payload []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(payload)); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

// handleControl 控制入口
// WebSocket 升级时开启控制会话，普通 GET 保持查询串直通网关。
func (s *Service) handleControl(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		if err := s.client.SendCommand(r.Context(), r.URL.Query()); err != nil {
			s.writeGatewayError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		utils.Warnf("Control: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session, err := s.translator.NewSession()
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "translator closed"),
			time.Now().Add(time.Second))
		return
	}
	defer session.Close()

	s.subs.Add(session.ID, KindControl, r.RemoteAddr)
	defer s.subs.Remove(session.ID)

	utils.Infof("Control session %s opened from %s", session.ID, r.RemoteAddr)

	for {
		var ev control.InputEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				utils.Debugf("Control session %s: read: %v", session.ID, err)
			}
			utils.Infof("Control session %s closed", session.ID)
			return
		}
		if err := session.HandleEvent(ev); err != nil {
			utils.Debugf("Control session %s: %v", session.ID, err)
			return
		}
		s.subs.Touch(session.ID)
	}
}

// handleSubscribers 订阅者列表，便于排查
func (s *Service) handleSubscribers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.subs.List())
}

// handlePassthrough 其余路径原样转发到网关
func (s *Service) handlePassthrough(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	resp, err := s.client.Request(r.Context(), r.Method, path, r.Body)
	if err != nil {
		s.writeGatewayError(w, err)
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		utils.Debugf("Passthrough %s %s: copy: %v", r.Method, r.URL.Path, err)
	}
}

func (s *Service) writeGatewayError(w http.ResponseWriter, err error) {
	if apperrors.Is(err, apperrors.ErrGatewayUnreachable) {
		w.Header().Set("Retry-After", "2")
		respondError(w, http.StatusBadGateway, "gateway unreachable")
		return
	}
	respondError(w, http.StatusBadGateway, err.Error())
}
