// Package relay 维护到网关媒体端点的单一上游连接，并向多个订阅者扇出帧
package relay

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"strings"

	"wifibridge/internal/gateway"
)

// FrameReader 从上游连续读取帧
type FrameReader interface {
	// ReadFrame 返回下一帧载荷；上游结束返回 io.EOF
	ReadFrame() ([]byte, error)
	io.Closer
}

// FrameSource 建立上游帧流
type FrameSource interface {
	Open(ctx context.Context) (FrameReader, error)
}

// chunkSize 非 multipart 上游的分块大小
const chunkSize = 32 << 10

// GatewaySource 基于网关媒体端点的帧源。
// multipart/x-mixed-replace 的每个 part 作为一帧（MJPEG），
// 其它内容类型退化为定长分块。
type GatewaySource struct {
	client   *gateway.Client
	mediaURL string
}

// NewGatewaySource 创建网关帧源
func NewGatewaySource(client *gateway.Client, mediaURL string) *GatewaySource {
	return &GatewaySource{client: client, mediaURL: mediaURL}
}

// Open 打开上游媒体连接
func (s *GatewaySource) Open(ctx context.Context) (FrameReader, error) {
	body, contentType, err := s.client.OpenStream(ctx, s.mediaURL)
	if err != nil {
		return nil, err
	}

	mediatype, params, _ := mime.ParseMediaType(contentType)
	if strings.HasPrefix(mediatype, "multipart/") && params["boundary"] != "" {
		return &multipartFrameReader{
			body:   body,
			reader: multipart.NewReader(body, params["boundary"]),
		}, nil
	}
	return &chunkFrameReader{body: body}, nil
}

// multipartFrameReader 逐 part 读取 MJPEG 帧
type multipartFrameReader struct {
	body   io.ReadCloser
	reader *multipart.Reader
}

func (r *multipartFrameReader) ReadFrame() ([]byte, error) {
	part, err := r.reader.NextPart()
	if err != nil {
		return nil, err
	}
	defer part.Close()
	return io.ReadAll(part)
}

func (r *multipartFrameReader) Close() error {
	return r.body.Close()
}

// chunkFrameReader 定长分块读取
type chunkFrameReader struct {
	body io.ReadCloser
}

func (r *chunkFrameReader) ReadFrame() ([]byte, error) {
	buf := make([]byte, chunkSize)
	n, err := r.body.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err == nil {
		err = io.EOF
	}
	return nil, err
}

func (r *chunkFrameReader) Close() error {
	return r.body.Close()
}
