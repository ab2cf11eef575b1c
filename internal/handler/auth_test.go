package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/outlet-pos/api/internal/auth"
	"github.com/outlet-pos/api/internal/database"
	"github.com/outlet-pos/api/internal/enum"
	"github.com/outlet-pos/api/internal/handler"
)

// --- Mock store ---

type mockAuthStore struct {
	users map[uuid.UUID]database.User
	err   error
}

func newMockAuthStore() *mockAuthStore {
	return &mockAuthStore{users: make(map[uuid.UUID]database.User)}
}

func (m *mockAuthStore) addUser(u database.User) {
	m.users[u.ID] = u
}

func (m *mockAuthStore) GetUserByEmail(_ context.Context, email string) (database.User, error) {
	if m.err != nil {
		return database.User{}, m.err
	}
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return database.User{}, pgx.ErrNoRows
}

func (m *mockAuthStore) GetUserByID(_ context.Context, id uuid.UUID) (database.User, error) {
	u, ok := m.users[id]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *mockAuthStore) ListPinUsers(_ context.Context, outletID uuid.UUID) ([]database.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []database.User
	for _, u := range m.users {
		if u.OutletID == outletID && u.PinHash.Valid {
			out = append(out, u)
		}
	}
	return out, nil
}

func hashed(t *testing.T, secret string) string {
	t.Helper()
	h, err := auth.HashSecret(secret)
	if err != nil {
		t.Fatalf("hash secret: %v", err)
	}
	return h
}

func makeTestUser(t *testing.T) database.User {
	t.Helper()
	return database.User{
		ID:             uuid.New(),
		OutletID:       uuid.New(),
		Email:          "cashier@test.com",
		HashedPassword: hashed(t, "correct-password"),
		PinHash:        pgtype.Text{String: hashed(t, "1234"), Valid: true},
		FullName:       "Test Cashier",
		Role:           enum.UserRoleCashier,
		IsActive:       true,
	}
}

func authRouter(store handler.AuthStore) http.Handler {
	r := chi.NewRouter()
	handler.NewAuthHandler(store, testSecret).RegisterRoutes(r)
	return r
}

// --- Login ---

func TestLogin_ValidCredentials(t *testing.T) {
	store := newMockAuthStore()
	user := makeTestUser(t)
	store.addUser(user)

	rr := postJSON(t, authRouter(store), "/auth/login", map[string]string{
		"email":    "  Cashier@Test.com ",
		"password": "correct-password",
	})
	assertStatus(t, rr, http.StatusOK)

	resp := decodeResponse(t, rr)
	access, _ := resp["access_token"].(string)
	claims, err := auth.ValidateToken(testSecret, access)
	if err != nil {
		t.Fatalf("access token does not validate: %v", err)
	}
	if claims.UserID != user.ID || claims.OutletID != user.OutletID {
		t.Errorf("claims: got %+v, want user %s outlet %s", claims, user.ID, user.OutletID)
	}
	refresh, _ := resp["refresh_token"].(string)
	if _, err := auth.ValidateRefreshToken(testSecret, refresh); err != nil {
		t.Errorf("refresh token does not validate: %v", err)
	}
	userResp, ok := resp["user"].(map[string]interface{})
	if !ok || userResp["role"] != enum.UserRoleCashier {
		t.Errorf("user: got %v", resp["user"])
	}
}

func TestLogin_Rejected(t *testing.T) {
	store := newMockAuthStore()
	store.addUser(makeTestUser(t))

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"wrong password", map[string]string{"email": "cashier@test.com", "password": "nope"}, http.StatusUnauthorized},
		{"unknown user", map[string]string{"email": "nobody@test.com", "password": "x"}, http.StatusUnauthorized},
		{"missing password", map[string]string{"email": "cashier@test.com"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertStatus(t, postJSON(t, authRouter(store), "/auth/login", tt.body), tt.want)
		})
	}
}

func TestLogin_StoreFailure(t *testing.T) {
	store := newMockAuthStore()
	store.err = context.DeadlineExceeded

	rr := postJSON(t, authRouter(store), "/auth/login", map[string]string{"email": "a@b.c", "password": "x"})
	assertStatus(t, rr, http.StatusInternalServerError)
}

// --- PIN login ---

func TestPinLogin_ValidCredentials(t *testing.T) {
	store := newMockAuthStore()
	user := makeTestUser(t)
	store.addUser(user)
	other := makeTestUser(t)
	other.OutletID = user.OutletID
	other.PinHash = pgtype.Text{String: hashed(t, "5678"), Valid: true}
	other.Email = "waiter@test.com"
	store.addUser(other)

	rr := postJSON(t, authRouter(store), "/auth/pin-login", map[string]string{
		"outlet_id": user.OutletID.String(),
		"pin":       "5678",
	})
	assertStatus(t, rr, http.StatusOK)

	userResp, _ := decodeResponse(t, rr)["user"].(map[string]interface{})
	if userResp["email"] != "waiter@test.com" {
		t.Errorf("signed in as %v, want waiter@test.com", userResp["email"])
	}
}

func TestPinLogin_Rejected(t *testing.T) {
	store := newMockAuthStore()
	user := makeTestUser(t)
	store.addUser(user)

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"wrong pin", map[string]string{"outlet_id": user.OutletID.String(), "pin": "9999"}, http.StatusUnauthorized},
		{"other outlet", map[string]string{"outlet_id": uuid.NewString(), "pin": "1234"}, http.StatusUnauthorized},
		{"bad outlet id", map[string]string{"outlet_id": "not-a-uuid", "pin": "1234"}, http.StatusBadRequest},
		{"missing pin", map[string]string{"outlet_id": user.OutletID.String()}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertStatus(t, postJSON(t, authRouter(store), "/auth/pin-login", tt.body), tt.want)
		})
	}
}

// --- Refresh ---

func TestRefresh_ValidToken(t *testing.T) {
	store := newMockAuthStore()
	user := makeTestUser(t)
	store.addUser(user)

	refresh, err := auth.GenerateRefreshToken(testSecret, user.ID)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}
	rr := postJSON(t, authRouter(store), "/auth/refresh", map[string]string{"refresh_token": refresh})
	assertStatus(t, rr, http.StatusOK)
}

func TestRefresh_AccessTokenRefused(t *testing.T) {
	store := newMockAuthStore()
	user := makeTestUser(t)
	store.addUser(user)

	access, err := auth.GenerateToken(testSecret, user.ID, user.OutletID, user.Role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	rr := postJSON(t, authRouter(store), "/auth/refresh", map[string]string{"refresh_token": access})
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestRefresh_UserGone(t *testing.T) {
	refresh, err := auth.GenerateRefreshToken(testSecret, uuid.New())
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}
	rr := postJSON(t, authRouter(newMockAuthStore()), "/auth/refresh", map[string]string{"refresh_token": refresh})
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestRefresh_MissingField(t *testing.T) {
	rr := postJSON(t, authRouter(newMockAuthStore()), "/auth/refresh", map[string]string{})
	assertStatus(t, rr, http.StatusBadRequest)
}
