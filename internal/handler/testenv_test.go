package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/autoflex/console/internal/autoflex"
	"github.com/autoflex/console/internal/config"
	"github.com/autoflex/console/internal/listview"
	"github.com/autoflex/console/internal/session"
	"github.com/autoflex/console/internal/sse"
)

// fakeUpstream 内存版Autoflex后端，测试里顶替真实API
type fakeUpstream struct {
	mu        sync.Mutex
	products  []autoflex.Product
	materials []autoflex.RawMaterial
	capacity  []autoflex.CapacityItem
	nextID    int64

	// tokens 上游token→用户
	tokens map[string]autoflex.User

	// forceStatus 非0时所有数据请求都返回该状态码
	forceStatus int
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		nextID: 100,
		products: []autoflex.Product{
			{ID: 1, Code: "P-001", Name: "Wood Chair", Price: 120},
			{ID: 2, Code: "P-002", Name: "Steel Table", Price: 300},
		},
		materials: []autoflex.RawMaterial{
			{ID: 10, Code: "RM-001", Name: "Wood", Unit: autoflex.UnitKG, StockQuantity: 50},
			{ID: 11, Code: "RM-002", Name: "Steel", Unit: autoflex.UnitKG, StockQuantity: 8},
		},
		capacity: []autoflex.CapacityItem{
			{
				ProductID: 1, ProductCode: "P-001", ProductName: "Wood Chair",
				UnitPrice: 120, MaxQuantity: 10, TotalValue: 1200,
				Materials: []autoflex.CapacityMaterial{
					{RawMaterialID: 10, RawMaterialCode: "RM-001", RawMaterialName: "Wood", Unit: autoflex.UnitKG, RequiredPerUnit: 5, StockQuantity: 50},
				},
			},
			{
				ProductID: 2, ProductCode: "P-002", ProductName: "Steel Table",
				UnitPrice: 300, MaxQuantity: 0, TotalValue: 0,
				Materials: []autoflex.CapacityMaterial{
					{RawMaterialID: 11, RawMaterialCode: "RM-002", RawMaterialName: "Steel", Unit: autoflex.UnitKG, RequiredPerUnit: 12, StockQuantity: 8},
				},
			},
		},
		tokens: map[string]autoflex.User{
			"up-admin": {ID: 1, Name: "Admin", Email: "admin@test.com", Role: autoflex.RoleAdmin},
			"up-user":  {ID: 2, Name: "User", Email: "user@test.com", Role: autoflex.RoleUser},
		},
	}
}

func (u *fakeUpstream) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", u.login)
	mux.HandleFunc("/auth/register", u.register)
	mux.HandleFunc("/products", u.productsCollection)
	mux.HandleFunc("/products/", u.productsItem)
	mux.HandleFunc("/raw-materials", u.materialsCollection)
	mux.HandleFunc("/raw-materials/", u.materialsItem)
	mux.HandleFunc("/production", u.production)
	return mux
}

func (u *fakeUpstream) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	var token string
	switch {
	case body.Email == "admin@test.com" && body.Password == "secret1":
		token = "up-admin"
	case body.Email == "user@test.com" && body.Password == "secret2":
		token = "up-user"
	default:
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "Invalid credentials"})
		return
	}

	u.mu.Lock()
	user := u.tokens[token]
	u.mu.Unlock()
	json.NewEncoder(w).Encode(map[string]interface{}{"token": token, "user": user})
}

func (u *fakeUpstream) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	if body.Email == "taken@test.com" {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"message": "Email already registered"})
		return
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(autoflex.User{ID: 99, Name: body.Name, Email: body.Email, Role: autoflex.RoleUser})
}

// authorize 校验bearer token，失败返回false并已写好响应
func (u *fakeUpstream) authorize(w http.ResponseWriter, r *http.Request) bool {
	u.mu.Lock()
	forced := u.forceStatus
	u.mu.Unlock()
	if forced != 0 {
		w.WriteHeader(forced)
		json.NewEncoder(w).Encode(map[string]string{"message": http.StatusText(forced)})
		return false
	}

	auth := r.Header.Get("Authorization")
	token := strings.TrimPrefix(auth, "Bearer ")
	u.mu.Lock()
	_, ok := u.tokens[token]
	u.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "Token expired"})
		return false
	}
	return true
}

func (u *fakeUpstream) productsCollection(w http.ResponseWriter, r *http.Request) {
	if !u.authorize(w, r) {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		name := strings.ToLower(r.URL.Query().Get("name"))
		code := strings.ToLower(r.URL.Query().Get("code"))
		out := []autoflex.Product{}
		for _, p := range u.products {
			if name != "" && !strings.Contains(strings.ToLower(p.Name), name) {
				continue
			}
			if code != "" && !strings.Contains(strings.ToLower(p.Code), code) {
				continue
			}
			out = append(out, p)
		}
		json.NewEncoder(w).Encode(out)
	case http.MethodPost:
		var req autoflex.ProductRequest
		json.NewDecoder(r.Body).Decode(&req)
		u.nextID++
		p := autoflex.Product{ID: u.nextID, Code: req.Code, Name: req.Name, Price: req.Price}
		for _, m := range req.Materials {
			p.Materials = append(p.Materials, autoflex.ProductMaterial{RawMaterialID: m.RawMaterialID, Quantity: m.Quantity})
		}
		u.products = append(u.products, p)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(p)
	}
}

func (u *fakeUpstream) productsItem(w http.ResponseWriter, r *http.Request) {
	if !u.authorize(w, r) {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/products/")
	idStr, _, _ := strings.Cut(rest, "/")
	id, _ := strconv.ParseInt(idStr, 10, 64)

	u.mu.Lock()
	defer u.mu.Unlock()

	idx := -1
	for i, p := range u.products {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "Product not found"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		json.NewEncoder(w).Encode(u.products[idx])
	case http.MethodPut:
		if strings.HasSuffix(r.URL.Path, "/materials") {
			var lines []autoflex.MaterialLine
			json.NewDecoder(r.Body).Decode(&lines)
			u.products[idx].Materials = nil
			for _, m := range lines {
				u.products[idx].Materials = append(u.products[idx].Materials,
					autoflex.ProductMaterial{RawMaterialID: m.RawMaterialID, Quantity: m.Quantity})
			}
		} else {
			var req autoflex.ProductRequest
			json.NewDecoder(r.Body).Decode(&req)
			u.products[idx].Code = req.Code
			u.products[idx].Name = req.Name
			u.products[idx].Price = req.Price
		}
		json.NewEncoder(w).Encode(u.products[idx])
	case http.MethodDelete:
		u.products = append(u.products[:idx], u.products[idx+1:]...)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (u *fakeUpstream) materialsCollection(w http.ResponseWriter, r *http.Request) {
	if !u.authorize(w, r) {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		name := strings.ToLower(r.URL.Query().Get("name"))
		code := strings.ToLower(r.URL.Query().Get("code"))
		out := []autoflex.RawMaterial{}
		for _, m := range u.materials {
			if name != "" && !strings.Contains(strings.ToLower(m.Name), name) {
				continue
			}
			if code != "" && !strings.Contains(strings.ToLower(m.Code), code) {
				continue
			}
			out = append(out, m)
		}
		json.NewEncoder(w).Encode(out)
	case http.MethodPost:
		var req autoflex.RawMaterialRequest
		json.NewDecoder(r.Body).Decode(&req)
		u.nextID++
		m := autoflex.RawMaterial{ID: u.nextID, Code: req.Code, Name: req.Name, Unit: req.Unit, StockQuantity: req.StockQuantity}
		u.materials = append(u.materials, m)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(m)
	}
}

func (u *fakeUpstream) materialsItem(w http.ResponseWriter, r *http.Request) {
	if !u.authorize(w, r) {
		return
	}
	idStr := strings.TrimPrefix(r.URL.Path, "/raw-materials/")
	id, _ := strconv.ParseInt(idStr, 10, 64)

	u.mu.Lock()
	defer u.mu.Unlock()

	idx := -1
	for i, m := range u.materials {
		if m.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "Raw material not found"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		json.NewEncoder(w).Encode(u.materials[idx])
	case http.MethodPut:
		var req autoflex.RawMaterialRequest
		json.NewDecoder(r.Body).Decode(&req)
		u.materials[idx].Code = req.Code
		u.materials[idx].Name = req.Name
		u.materials[idx].Unit = req.Unit
		u.materials[idx].StockQuantity = req.StockQuantity
		json.NewEncoder(w).Encode(u.materials[idx])
	case http.MethodDelete:
		u.materials = append(u.materials[:idx], u.materials[idx+1:]...)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (u *fakeUpstream) production(w http.ResponseWriter, r *http.Request) {
	if !u.authorize(w, r) {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	json.NewEncoder(w).Encode(u.capacity)
}

func (u *fakeUpstream) setForceStatus(status int) {
	u.mu.Lock()
	u.forceStatus = status
	u.mu.Unlock()
}

// testEnv 完整网关测试环境：假上游 + 真路由
type testEnv struct {
	Router   *gin.Engine
	Upstream *fakeUpstream
	Deps     *Deps
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	up := newFakeUpstream()
	srv := httptest.NewServer(up.handler())
	t.Cleanup(srv.Close)

	logger := zap.NewNop()
	cfg := &config.Config{}
	cfg.Upstream.BaseURL = srv.URL
	cfg.Session.Secret = "test-secret"
	cfg.Session.TTL = time.Hour
	cfg.Session.CookieName = "autoflex_session"
	cfg.UI.Debounce = 20 * time.Millisecond
	cfg.UI.PageTTL = time.Minute

	api := autoflex.NewClient(srv.URL, 5*time.Second, logger)
	store, err := session.NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"), logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	deps := &Deps{
		API:      api,
		Sessions: session.NewManager(api, store, cfg.Session.Secret, cfg.Session.TTL, logger),
		Registry: listview.NewRegistry(cfg.UI.PageTTL, logger),
		Hub:      sse.NewHub(logger),
		Cfg:      cfg,
		Logger:   logger,
	}
	t.Cleanup(deps.Registry.Shutdown)

	router := gin.New()
	RegisterRoutes(router, NewHandlers(deps), deps)

	return &testEnv{Router: router, Upstream: up, Deps: deps}
}

// doRequest 发送请求，token非空时放进Authorization
func (e *testEnv) doRequest(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// login 走完整登录流程，返回网关会话凭证
func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	w := e.doRequest("POST", "/api/auth/login",
		map[string]string{"email": email, "password": password}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Login expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := parseResponse(w)
	data := resp["data"].(map[string]interface{})
	return data["token"].(string)
}

func (e *testEnv) loginAdmin(t *testing.T) string {
	return e.login(t, "admin@test.com", "secret1")
}

func (e *testEnv) loginUser(t *testing.T) string {
	return e.login(t, "user@test.com", "secret2")
}

func parseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// pollSnapshot 轮询页面快照直到异步加载落定
func (e *testEnv) pollSnapshot(t *testing.T, page, token, wantState string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var last map[string]interface{}
	for time.Now().Before(deadline) {
		w := e.doRequest("GET", "/api/pages/"+page, nil, token)
		if w.Code != http.StatusOK {
			t.Fatalf("Snapshot expected 200, got %d: %s", w.Code, w.Body.String())
		}
		resp := parseResponse(w)
		last = resp["data"].(map[string]interface{})
		if last["state"] == wantState {
			return last
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Page %s never reached state %s, last: %v", page, wantState, last["state"])
	return nil
}
