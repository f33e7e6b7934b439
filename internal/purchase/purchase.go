package purchase

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

var (
	ErrConfigInvalid   = errors.New("purchase gateway config invalid")
	ErrRequestFailed   = errors.New("purchase gateway request failed")
	ErrRequestTimeout  = errors.New("purchase gateway request timed out")
	ErrResponseInvalid = errors.New("purchase gateway response invalid")
	ErrOrderNotFound   = errors.New("purchase order not found")
)

// 采购单远端状态常量
const (
	StatusProcessing = 1 // 处理中
	StatusFulfilled  = 2 // 已出卡
	StatusFailed     = 3 // 失败
)

const defaultTimeout = 15 * time.Second

// Config 采购网关配置
type Config struct {
	GatewayURL     string `json:"gateway_url"`     // 网关地址，如 https://cards.example.com
	AuthToken      string `json:"auth_token"`      // API Token
	TimeoutSeconds int    `json:"timeout_seconds"` // 请求超时（秒）
}

// normalize 规整配置
func (c *Config) normalize() {
	c.GatewayURL = strings.TrimRight(strings.TrimSpace(c.GatewayURL), "/")
	c.AuthToken = strings.TrimSpace(c.AuthToken)
}

// ValidateConfig 校验配置
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.GatewayURL) == "" {
		return fmt.Errorf("%w: gateway_url is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.AuthToken) == "" {
		return fmt.Errorf("%w: auth_token is required", ErrConfigInvalid)
	}
	return nil
}

// PurchaseInput 采购请求输入
type PurchaseInput struct {
	IdempotencyKey string
	BrandCode      string
	Denomination   string
	Currency       string
}

// PurchaseResult 采购结果
type PurchaseResult struct {
	OrderID    string                 // 远端采购单号
	CardCode   string                 // 卡密
	CardNumber string                 // 卡号（可选）
	Cost       string                 // 实际成本
	ExpiresAt  *time.Time             // 卡过期时间（可选）
	Raw        map[string]interface{} // 原始响应
}

// Client 采购网关客户端
type Client struct {
	cfg        *Config
	httpClient *http.Client
}

// NewClient 创建采购网关客户端
func NewClient(cfg *Config) (*Client, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Purchase 向网关下单采购一张卡
// 幂等性依赖调用方传入的 IdempotencyKey：同键重复下单时
// 网关返回首次下单的结果。
func (c *Client) Purchase(ctx context.Context, input PurchaseInput) (*PurchaseResult, error) {
	if input.IdempotencyKey == "" || input.BrandCode == "" || input.Denomination == "" {
		return nil, fmt.Errorf("%w: incomplete purchase input", ErrConfigInvalid)
	}

	params := map[string]interface{}{
		"idempotency_key": input.IdempotencyKey,
		"brand_code":      input.BrandCode,
		"denomination":    input.Denomination,
	}
	if input.Currency != "" {
		params["currency"] = input.Currency
	}
	params["signature"] = Sign(params, c.cfg.AuthToken)

	respBytes, err := c.postJSON(ctx, c.cfg.GatewayURL+"/api/v1/cards/purchase", params)
	if err != nil {
		return nil, err
	}
	return parsePurchaseResponse(respBytes)
}

// Lookup 按幂等键回查采购单，对账任务使用
func (c *Client) Lookup(ctx context.Context, idempotencyKey string) (*PurchaseResult, int, error) {
	if idempotencyKey == "" {
		return nil, 0, fmt.Errorf("%w: idempotency key is required", ErrConfigInvalid)
	}

	params := map[string]interface{}{
		"idempotency_key": idempotencyKey,
	}
	params["signature"] = Sign(params, c.cfg.AuthToken)

	respBytes, err := c.postJSON(ctx, c.cfg.GatewayURL+"/api/v1/cards/lookup", params)
	if err != nil {
		return nil, 0, err
	}

	var resp struct {
		StatusCode int    `json:"status_code"`
		Message    string `json:"message"`
		Data       struct {
			Status int `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if resp.StatusCode == 404 {
		return nil, 0, ErrOrderNotFound
	}
	if resp.StatusCode != 200 {
		return nil, 0, fmt.Errorf("%w: %s", ErrResponseInvalid, resp.Message)
	}
	if resp.Data.Status != StatusFulfilled {
		return nil, resp.Data.Status, nil
	}

	result, err := parsePurchaseResponse(respBytes)
	if err != nil {
		return nil, 0, err
	}
	return result, StatusFulfilled, nil
}

func parsePurchaseResponse(respBytes []byte) (*PurchaseResult, error) {
	var resp struct {
		StatusCode int    `json:"status_code"`
		Message    string `json:"message"`
		Data       struct {
			OrderID    string `json:"order_id"`
			CardCode   string `json:"card_code"`
			CardNumber string `json:"card_number"`
			Cost       string `json:"cost"`
			ExpiresAt  string `json:"expires_at"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("%w: %s", ErrResponseInvalid, resp.Message)
	}
	if resp.Data.CardCode == "" {
		return nil, fmt.Errorf("%w: missing card_code", ErrResponseInvalid)
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(respBytes, &raw)

	result := &PurchaseResult{
		OrderID:    resp.Data.OrderID,
		CardCode:   resp.Data.CardCode,
		CardNumber: resp.Data.CardNumber,
		Cost:       resp.Data.Cost,
		Raw:        raw,
	}
	if resp.Data.ExpiresAt != "" {
		if t, err := time.Parse(time.RFC3339, resp.Data.ExpiresAt); err == nil {
			result.ExpiresAt = &t
		}
	}
	return result, nil
}

// Sign 生成签名
// 签名规则：
// 1. 筛选所有非空且非 signature 的参数
// 2. 按参数名 ASCII 码从小到大排序
// 3. 按 key=value 格式拼接，使用 & 连接
// 4. 在末尾追加 AuthToken（无 & 符号）
// 5. MD5 加密并转小写
func Sign(params map[string]interface{}, authToken string) string {
	var keys []string
	for k, v := range params {
		if k == "signature" {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pairs []string
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, params[k]))
	}

	content := strings.Join(pairs, "&") + authToken
	sum := md5.Sum([]byte(content))
	return strings.ToLower(hex.EncodeToString(sum[:]))
}

func (c *Client) postJSON(ctx context.Context, endpoint string, params map[string]interface{}) ([]byte, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrRequestTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http status %d", ErrRequestFailed, resp.StatusCode)
	}
	return respBytes, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Timeout()
	}
	return false
}
