// Package gateway é o cliente HTTP do backend que gerencia os containers
// Evolution de cada cliente. Toda chamada roda com timeout próprio; apenas
// leituras são repetidas em caso de falha transitória.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/open-apime/evomanager/internal/apperr"
	"github.com/open-apime/evomanager/internal/metrics"
)

const maxBodySize = 4 << 20

type Config struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	RetryMax  int
	RateLimit float64
	RateBurst int
}

type Client struct {
	mu      sync.RWMutex
	baseURL string
	apiKey  string

	timeout time.Duration
	reads   *retryablehttp.Client
	writes  *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
	metrics *metrics.Collector
}

func New(cfg Config, log *zap.Logger, m *metrics.Collector) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}

	httpClient := &http.Client{}

	reads := retryablehttp.NewClient()
	reads.HTTPClient = httpClient
	reads.RetryMax = cfg.RetryMax
	reads.RetryWaitMin = 100 * time.Millisecond
	reads.RetryWaitMax = time.Second
	reads.Logger = &leveledLogger{log: log.Sugar()}
	// Devolve a última resposta/erro em vez de "giving up after N attempts".
	reads.ErrorHandler = retryablehttp.PassthroughErrorHandler

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		reads:   reads,
		writes:  httpClient,
		limiter: limiter,
		log:     log,
		metrics: m,
	}
}

// SetBackend aplica a configuração do catálogo sobre a do ambiente. A API
// key é sempre substituída: vazia remove a chave. baseURL vazia mantém a
// URL atual.
func (c *Client) SetBackend(baseURL, apiKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	c.apiKey = apiKey
}

// APIKey é a chave em uso. O Evolution a reenvia nos callbacks.
func (c *Client) APIKey() string {
	_, key := c.backend()
	return key
}

func (c *Client) backend() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL, c.apiKey
}

type call struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
}

// do executa a chamada e devolve status e corpo. Erros de transporte e 5xx
// já saem classificados; demais status ficam a cargo de quem chamou.
func (c *Client) do(ctx context.Context, req call) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	status, body, err := c.send(ctx, req)

	outcome := "ok"
	switch {
	case apperr.IsTimeout(err):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	case status >= 400:
		outcome = fmt.Sprintf("%dxx", status/100)
	}
	c.metrics.ObserveGateway(req.op, outcome, time.Since(start))

	if err != nil {
		c.log.Warn("gateway: falha na chamada",
			zap.String("op", req.op),
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
	}
	return status, body, err
}

func (c *Client) send(ctx context.Context, req call) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, apperr.Timeout("gateway "+req.op+": limite de requisições excedido", err)
	}

	baseURL, apiKey := c.backend()
	target := baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var payload []byte
	if req.body != nil {
		var err error
		payload, err = json.Marshal(req.body)
		if err != nil {
			return 0, nil, apperr.Internal("gateway "+req.op+": serializar corpo", err)
		}
	}

	var (
		resp *http.Response
		err  error
	)
	if req.method == http.MethodGet {
		var r *retryablehttp.Request
		r, err = retryablehttp.NewRequestWithContext(ctx, req.method, target, nil)
		if err != nil {
			return 0, nil, apperr.Internal("gateway "+req.op+": montar requisição", err)
		}
		setHeaders(r.Header, apiKey, false)
		resp, err = c.reads.Do(r)
	} else {
		var r *http.Request
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		r, err = http.NewRequestWithContext(ctx, req.method, target, reader)
		if err != nil {
			return 0, nil, apperr.Internal("gateway "+req.op+": montar requisição", err)
		}
		setHeaders(r.Header, apiKey, payload != nil)
		resp, err = c.writes.Do(r)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return 0, nil, transportError(req.op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, nil, transportError(req.op, err)
	}
	if resp.StatusCode >= 500 {
		return resp.StatusCode, body, statusError(req.op, resp.StatusCode, body)
	}
	return resp.StatusCode, body, nil
}

func setHeaders(h http.Header, apiKey string, hasBody bool) {
	if apiKey != "" {
		h.Set("apikey", apiKey)
	}
	h.Set("Accept", "application/json")
	if hasBody {
		h.Set("Content-Type", "application/json")
	}
}

func ok(status int) bool { return status >= 200 && status < 300 }

func seg(s string) string { return url.PathEscape(s) }

func evolutionPath(container, suffix string) string {
	return "/containers/" + seg(container) + "/evolution/" + suffix
}

func (c *Client) DeployClientContainer(ctx context.Context, clientID string) (Deployment, error) {
	const op = "deploy_container"
	status, body, err := c.do(ctx, call{op: op, method: http.MethodPost, path: "/containers", body: map[string]string{"clientId": clientID}})
	if err != nil {
		return Deployment{}, err
	}
	if !ok(status) {
		return Deployment{}, statusError(op, status, body)
	}
	d, valid := decodeDeployment(body)
	if !valid {
		return Deployment{}, malformed(op, nil)
	}
	return d, nil
}

func (c *Client) ContainerAction(ctx context.Context, containerName, action string) error {
	const op = "container_action"
	switch action {
	case ActionStart, ActionStop, ActionRestart:
	default:
		return apperr.BadRequest("ação de container inválida: " + action)
	}
	status, body, err := c.do(ctx, call{op: op, method: http.MethodPost, path: "/containers/" + seg(containerName) + "/" + action})
	if err != nil {
		return err
	}
	if !ok(status) {
		return statusError(op, status, body)
	}
	return nil
}

func (c *Client) ListContainers(ctx context.Context) ([]Container, error) {
	const op = "list_containers"
	status, body, err := c.do(ctx, call{op: op, method: http.MethodGet, path: "/containers"})
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		return nil, statusError(op, status, body)
	}
	list, valid := decodeContainers(body)
	if !valid {
		return nil, malformed(op, nil)
	}
	return list, nil
}

func (c *Client) HealthCheck(ctx context.Context) (Health, error) {
	const op = "health"
	status, body, err := c.do(ctx, call{op: op, method: http.MethodGet, path: "/health"})
	if err != nil {
		return Health{}, err
	}
	if !ok(status) {
		return Health{}, statusError(op, status, body)
	}
	h, valid := decodeHealth(body)
	if !valid {
		return Health{}, malformed(op, nil)
	}
	return h, nil
}

func (c *Client) CreateInstance(ctx context.Context, clientID, instanceName string) (CreatedInstance, error) {
	const op = "create_instance"
	status, body, err := c.do(ctx, call{
		op:     op,
		method: http.MethodPost,
		path:   "/clients/" + seg(clientID) + "/instances",
		body:   map[string]string{"instanceName": instanceName},
	})
	if err != nil {
		return CreatedInstance{}, err
	}
	if !ok(status) {
		return CreatedInstance{}, statusError(op, status, body)
	}
	ci, valid := decodeCreatedInstance(body, instanceName)
	if !valid {
		return CreatedInstance{}, malformed(op, nil)
	}
	return ci, nil
}

// DeleteInstance trata 404 como sucesso: a instância já não existe.
func (c *Client) DeleteInstance(ctx context.Context, clientID, instanceName string) error {
	const op = "delete_instance"
	status, body, err := c.do(ctx, call{
		op:     op,
		method: http.MethodDelete,
		path:   "/clients/" + seg(clientID) + "/instances/" + seg(instanceName),
	})
	if err != nil {
		return err
	}
	if status == http.StatusNotFound || ok(status) {
		return nil
	}
	return statusError(op, status, body)
}

func (c *Client) ConnectionState(ctx context.Context, containerName, instanceName string) (ConnectionState, error) {
	const op = "connection_state"
	status, body, err := c.do(ctx, call{
		op:     op,
		method: http.MethodGet,
		path:   evolutionPath(containerName, "instance/connectionState/"+seg(instanceName)),
	})
	if err != nil {
		return ConnectionState{}, err
	}
	if !ok(status) {
		return ConnectionState{}, statusError(op, status, body)
	}
	cs, valid := decodeConnectionState(body, instanceName)
	if !valid {
		return ConnectionState{}, malformed(op, nil)
	}
	return cs, nil
}

// InstanceInfo devolve nil, nil quando o backend não conhece a instância.
func (c *Client) InstanceInfo(ctx context.Context, containerName, instanceName string) (*InstanceInfo, error) {
	const op = "instance_info"
	status, body, err := c.do(ctx, call{
		op:     op,
		method: http.MethodGet,
		path:   evolutionPath(containerName, "instance/fetchInstances"),
		query:  url.Values{"instanceName": []string{instanceName}},
	})
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if !ok(status) {
		return nil, statusError(op, status, body)
	}
	info, valid := decodeInstanceInfo(body, instanceName)
	if !valid {
		return nil, malformed(op, nil)
	}
	return info, nil
}

// InstanceQR devolve o QR como data URL PNG. Quando o backend só manda o
// código de pareamento, a imagem é gerada localmente. String vazia significa
// que não há QR disponível (por exemplo, instância já conectada).
func (c *Client) InstanceQR(ctx context.Context, containerName, instanceName string) (string, error) {
	const op = "instance_qr"
	status, body, err := c.do(ctx, call{
		op:     op,
		method: http.MethodGet,
		path:   evolutionPath(containerName, "instance/connect/"+seg(instanceName)),
	})
	if err != nil {
		return "", err
	}
	if !ok(status) {
		return "", statusError(op, status, body)
	}
	qr, valid := decodeQR(body)
	if !valid {
		return "", malformed(op, nil)
	}
	if qr.Image != "" {
		return asDataURL(qr.Image), nil
	}
	if qr.Code == "" {
		return "", nil
	}
	png, err := qrcode.Encode(qr.Code, qrcode.Medium, 256)
	if err != nil {
		return "", apperr.Internal("gateway "+op+": gerar imagem do QR", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

func asDataURL(img string) string {
	if strings.HasPrefix(img, "data:") {
		return img
	}
	return "data:image/png;base64," + img
}

// InstanceWebhook devolve nil, nil quando não há webhook configurado.
func (c *Client) InstanceWebhook(ctx context.Context, containerName, instanceName string) (*WebhookConfig, error) {
	const op = "webhook_find"
	status, body, err := c.do(ctx, call{
		op:     op,
		method: http.MethodGet,
		path:   evolutionPath(containerName, "webhook/find/"+seg(instanceName)),
	})
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if !ok(status) {
		return nil, statusError(op, status, body)
	}
	wc, valid := decodeWebhook(body)
	if !valid {
		return nil, malformed(op, nil)
	}
	return wc, nil
}

type setWebhookBody struct {
	Webhook struct {
		Enabled  bool     `json:"enabled"`
		URL      string   `json:"url"`
		Events   []string `json:"events"`
		ByEvents bool     `json:"byEvents"`
		Base64   bool     `json:"base64"`
	} `json:"webhook"`
}

func (c *Client) SetWebhook(ctx context.Context, containerName, instanceName string, cfg WebhookConfig) (WebhookConfig, error) {
	const op = "webhook_set"

	var reqBody setWebhookBody
	reqBody.Webhook.Enabled = cfg.Enabled
	reqBody.Webhook.URL = cfg.URL
	reqBody.Webhook.Events = cfg.Events

	status, body, err := c.do(ctx, call{
		op:     op,
		method: http.MethodPost,
		path:   evolutionPath(containerName, "webhook/set/"+seg(instanceName)),
		body:   reqBody,
	})
	if err != nil {
		return WebhookConfig{}, err
	}
	if !ok(status) {
		return WebhookConfig{}, statusError(op, status, body)
	}
	// Algumas versões respondem só {status:"SUCCESS"}; nesse caso vale o que
	// foi enviado.
	if wc, valid := decodeWebhook(body); valid && wc != nil {
		return *wc, nil
	}
	return cfg, nil
}

// leveledLogger adapta zap ao retryablehttp.LeveledLogger.
type leveledLogger struct {
	log *zap.SugaredLogger
}

func (l *leveledLogger) Error(msg string, kv ...interface{}) { l.log.Debugw(msg, kv...) }
func (l *leveledLogger) Info(msg string, kv ...interface{})  { l.log.Debugw(msg, kv...) }
func (l *leveledLogger) Debug(msg string, kv ...interface{}) { l.log.Debugw(msg, kv...) }
func (l *leveledLogger) Warn(msg string, kv ...interface{})  { l.log.Debugw(msg, kv...) }
