package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"todoList/internal/logger"
	"todoList/internal/models/task"
	"todoList/internal/remote/dto"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const RevisionHeader = "X-Last-Known-Revision"

const maxResponseSize = 10 << 20

// Client работает со списком задач на сервере. Вызовы выполняются по одному: ревизия,
// полученная для одного запроса, не может быть использована параллельным.
type Client struct {
	baseURL        *url.URL
	http           *http.Client
	deviceID       string
	listTimeout    time.Duration
	requestTimeout time.Duration

	mtx         sync.Mutex
	revision    int64
	hasRevision bool
	// цвет не входит в модель задачи, но сервер не должен его терять при правке
	colors map[string]string
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	if client == nil {
		return nil
	}
	return func(c *Client) {
		c.http = client
	}
}

func WithDeviceID(id string) Option {
	if id == "" {
		return nil
	}
	return func(c *Client) {
		c.deviceID = id
	}
}

func WithListTimeout(d time.Duration) Option {
	if d <= 0 {
		return nil
	}
	return func(c *Client) {
		c.listTimeout = d
	}
}

func WithRequestTimeout(d time.Duration) Option {
	if d <= 0 {
		return nil
	}
	return func(c *Client) {
		c.requestTimeout = d
	}
}

func WithRevision(revision int64) Option {
	return func(c *Client) {
		c.revision = revision
		c.hasRevision = true
	}
}

func New(baseURL, token string, options ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("разбор адреса сервера: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("адрес сервера %q должен содержать схему и хост", baseURL)
	}

	c := &Client{
		baseURL:        u,
		http:           &http.Client{},
		deviceID:       uuid.NewString(),
		listTimeout:    60 * time.Second,
		requestTimeout: 10 * time.Second,
		colors:         make(map[string]string),
	}
	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}

	base := c.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	authorized := *c.http
	authorized.Transport = &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
		Base:   otelhttp.NewTransport(base),
	}
	c.http = &authorized

	return c, nil
}

func (c *Client) DeviceID() string {
	return c.deviceID
}

// Revision возвращает последнюю известную ревизию списка.
func (c *Client) Revision() (int64, bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.revision, c.hasRevision
}

func (c *Client) FetchList(ctx context.Context) ([]task.Task, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.fetchList(ctx)
}

func (c *Client) FetchOne(ctx context.Context, id string) (task.Task, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	var resp dto.ElementResponse
	if err := c.do(ctx, "fetchOne", c.requestTimeout, http.MethodGet, c.endpoint(id), nil, false, &resp); err != nil {
		return task.Task{}, err
	}
	if resp.Revision != nil {
		c.setRevision(*resp.Revision)
	}
	return c.element("fetchOne", resp.Element)
}

func (c *Client) Add(ctx context.Context, t task.Task) (task.Task, error) {
	return c.mutateElement(ctx, "add", http.MethodPost, c.endpoint(""), &t)
}

func (c *Client) Edit(ctx context.Context, t task.Task) (task.Task, error) {
	return c.mutateElement(ctx, "edit", http.MethodPut, c.endpoint(t.ID), &t)
}

// Delete возвращает удалённую сервером задачу.
func (c *Client) Delete(ctx context.Context, id string) (task.Task, error) {
	return c.mutateElement(ctx, "delete", http.MethodDelete, c.endpoint(id), nil)
}

// BulkReplace заменяет весь список на сервере и возвращает его каноничное состояние.
func (c *Client) BulkReplace(ctx context.Context, tasks []task.Task) ([]task.Task, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if err := c.ensureRevision(ctx); err != nil {
		return nil, err
	}

	var resp dto.ListResponse
	body := &dto.ListRequest{List: make([]dto.RemoteTask, 0, len(tasks))}
	for _, t := range tasks {
		body.List = append(body.List, c.outgoing(t))
	}
	if err := c.do(ctx, "bulkReplace", c.listTimeout, http.MethodPatch, c.endpoint(""), body, true, &resp); err != nil {
		return nil, err
	}
	c.advanceRevision(resp.Revision)

	logger.Info("Remote: Список заменён на сервере",
		zap.Int("sent", len(tasks)),
		zap.Int("received", len(resp.List)),
		zap.Int64("revision", c.revision))
	return c.list(resp.List), nil
}

// без элемента запрос уходит с пустым телом
func (c *Client) mutateElement(ctx context.Context, op, method, endpoint string, element *task.Task) (task.Task, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if err := c.ensureRevision(ctx); err != nil {
		return task.Task{}, err
	}

	var body any
	if element != nil {
		body = &dto.ElementRequest{Element: c.outgoing(*element)}
	}

	var resp dto.ElementResponse
	if err := c.do(ctx, op, c.requestTimeout, method, endpoint, body, true, &resp); err != nil {
		return task.Task{}, err
	}
	c.advanceRevision(resp.Revision)

	logger.Info("Remote: Изменение принято сервером",
		zap.String("op", op),
		zap.String("task_id", resp.Element.ID),
		zap.Int64("revision", c.revision))
	if op == "delete" {
		delete(c.colors, resp.Element.ID)
		return c.convert(op, resp.Element)
	}
	return c.element(op, resp.Element)
}

// ensureRevision запрашивает список, если ревизия ещё неизвестна.
func (c *Client) ensureRevision(ctx context.Context) error {
	if c.hasRevision {
		return nil
	}
	logger.Info("Remote: Ревизия неизвестна, запрашиваем список")
	if _, err := c.fetchList(ctx); err != nil {
		return err
	}
	if !c.hasRevision {
		return &NetworkError{Op: "fetchList", Cause: CauseDecode, Message: "сервер не вернул ревизию"}
	}
	return nil
}

func (c *Client) fetchList(ctx context.Context) ([]task.Task, error) {
	var resp dto.ListResponse
	if err := c.do(ctx, "fetchList", c.listTimeout, http.MethodGet, c.endpoint(""), nil, false, &resp); err != nil {
		return nil, err
	}
	if resp.Revision != nil {
		c.setRevision(*resp.Revision)
	}
	return c.list(resp.List), nil
}

func (c *Client) setRevision(revision int64) {
	c.revision = revision
	c.hasRevision = true
}

// без ревизии в ответе считаем, что сервер увеличил её на единицу
func (c *Client) advanceRevision(revision *int64) {
	if revision != nil {
		c.setRevision(*revision)
		return
	}
	c.setRevision(c.revision + 1)
}

// outgoing возвращает задаче цвет, последний раз полученный с сервера.
func (c *Client) outgoing(t task.Task) dto.RemoteTask {
	r := dto.FromTask(t, c.deviceID)
	if color, ok := c.colors[t.ID]; ok {
		r.Color = &color
	}
	return r
}

func (c *Client) rememberColor(r dto.RemoteTask) {
	if r.Color == nil {
		delete(c.colors, r.ID)
		return
	}
	c.colors[r.ID] = *r.Color
}

func (c *Client) element(op string, r dto.RemoteTask) (task.Task, error) {
	c.rememberColor(r)
	return c.convert(op, r)
}

func (c *Client) convert(op string, r dto.RemoteTask) (task.Task, error) {
	t, err := dto.ToTask(r)
	if err != nil {
		return task.Task{}, &NetworkError{Op: op, Cause: CauseDecode, Err: err}
	}
	return t, nil
}

// элементы с неизвестной важностью пропускаются, как и при загрузке JSON-списка с диска.
// Список с сервера полный, поэтому цвета пересобираются целиком.
func (c *Client) list(items []dto.RemoteTask) []task.Task {
	c.colors = make(map[string]string, len(items))
	tasks := make([]task.Task, 0, len(items))
	for _, item := range items {
		c.rememberColor(item)
		t, err := dto.ToTask(item)
		if err != nil {
			logger.Warn("Remote: Задача с сервера пропущена", zap.String("task_id", item.ID), zap.Error(err))
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks
}

func (c *Client) endpoint(id string) string {
	if id == "" {
		return c.baseURL.JoinPath("list").String()
	}
	return c.baseURL.JoinPath("list", id).String()
}

func (c *Client) do(ctx context.Context, op string, timeout time.Duration, method, endpoint string, body any, withRevision bool, out any) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: кодирование запроса: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%s: создание запроса: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if withRevision {
		req.Header.Set(RevisionHeader, strconv.FormatInt(c.revision, 10))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn("Remote: Сервер недоступен", zap.String("op", op), zap.Error(err))
		return &NetworkError{Op: op, Cause: CauseConnectivity, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &NetworkError{Op: op, Cause: CauseConnectivity, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		netErr := &NetworkError{
			Op:         op,
			Cause:      CauseStatus,
			StatusCode: resp.StatusCode,
			Message:    serverMessage(resp.StatusCode, raw),
		}
		logger.Warn("Remote: Сервер вернул ошибку",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("message", netErr.Message))
		return netErr
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &NetworkError{Op: op, Cause: CauseDecode, StatusCode: resp.StatusCode, Err: err}
	}

	if time.Since(start) > time.Second {
		logger.Warn("Remote: Медленный запрос", zap.String("op", op), zap.Duration("ms", time.Since(start)))
	}
	return nil
}

func serverMessage(status int, raw []byte) string {
	if gjson.ValidBytes(raw) {
		for _, key := range []string{"message", "error", "status"} {
			if v := gjson.GetBytes(raw, key); v.Type == gjson.String && v.Str != "" {
				return v.Str
			}
		}
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return http.StatusText(status)
	}
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
