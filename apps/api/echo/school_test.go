package echoapi_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/school"
	testutil "github.com/trezcool/darasa/tests"
)

func Test_home(t *testing.T) {
	env := setup(t)

	req, rec := newRequest(http.MethodGet, "/")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Darasa API!", rec.Body.String())
}

func Test_schoolApi_register(t *testing.T) {
	env := setup(t)
	testutil.CreateSchool(t, env.schools, "John Roe", "Riverside", "john@riverside.edu", pwd)

	tests := []httpTest{
		{
			name:     "unknown field",
			body:     []byte(`{"name": "Jane", "school_name": "Greenwood", "email": "jane@greenwood.edu", "password": "` + pwd + `", "role": "admin"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "missing fields",
			body:     []byte(`{"name": "Jane"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{
				"school_name": "this field is required",
				"email": "this field is required",
				"password": "this field is required"
			}`),
		},
		{
			name:     "email taken",
			body:     []byte(`{"name": "Jane", "school_name": "Greenwood", "email": "John@Riverside.edu", "password": "` + pwd + `"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"email": "a school with this email already exists"}`),
		},
		{
			name:     "school name taken",
			body:     []byte(`{"name": "Jane", "school_name": "Riverside", "email": "jane@greenwood.edu", "password": "` + pwd + `"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"school_name": "a school with this name already exists"}`),
		},
		{
			name:     "weak password",
			body:     []byte(`{"name": "Jane", "school_name": "Greenwood", "email": "jane@greenwood.edu", "password": "12345678"}`),
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPost, "/v1/schools/register"
			env.serve(t, tt)
		})
	}

	t.Run("success", func(t *testing.T) {
		rec := env.serve(t, httpTest{
			method:   http.MethodPost,
			path:     "/v1/schools/register",
			body:     []byte(`{"name": "Jane Doe", "school_name": "Greenwood High", "email": "jane@greenwood.edu", "password": "` + pwd + `"}`),
			wantCode: http.StatusCreated,
		})

		var resp struct {
			Token   string        `json:"token"`
			Profile school.School `json:"profile"`
		}
		decode(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "Greenwood High", resp.Profile.SchoolName)
		assert.Len(t, env.mailSvc.SentMessages(), 1)

		// the token authenticates the new admin
		env.serve(t, httpTest{
			method:   http.MethodGet,
			path:     "/v1/schools/" + resp.Profile.ID,
			token:    resp.Token,
			wantCode: http.StatusOK,
		})
	})
}

func Test_schoolApi_login(t *testing.T) {
	env := setup(t)
	sch := testutil.CreateSchool(t, env.schools, "Jane Doe", "Greenwood High", "jane@greenwood.edu", pwd)
	errAuth := marchallObj(t, httpErr{Error: "authentication failed"})

	tests := []httpTest{
		{
			name:     "missing password",
			body:     []byte(`{"email": "jane@greenwood.edu"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"password": "this field is required"}`),
		},
		{
			name:     "wrong password",
			body:     []byte(`{"email": "jane@greenwood.edu", "password": "nope-nope"}`),
			wantCode: http.StatusBadRequest,
			wantData: errAuth,
		},
		{
			name:     "unknown email",
			body:     []byte(`{"email": "who@greenwood.edu", "password": "` + pwd + `"}`),
			wantCode: http.StatusBadRequest,
			wantData: errAuth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPost, "/v1/schools/login"
			env.serve(t, tt)
		})
	}

	t.Run("success", func(t *testing.T) {
		rec := env.serve(t, httpTest{
			method:   http.MethodPost,
			path:     "/v1/schools/login",
			body:     []byte(`{"email": "JANE@greenwood.edu", "password": "` + pwd + `"}`),
			wantCode: http.StatusOK,
		})

		var resp struct {
			Token   string        `json:"token"`
			Profile school.School `json:"profile"`
		}
		decode(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, sch.ID, resp.Profile.ID)
		assert.False(t, resp.Profile.LastLogin.IsZero())
	})
}

func Test_schoolApi_retrieve(t *testing.T) {
	env := setup(t)
	sch := testutil.CreateSchool(t, env.schools, "Jane Doe", "Greenwood High", "jane@greenwood.edu", pwd)
	other := testutil.CreateSchool(t, env.schools, "John Roe", "Riverside", "john@riverside.edu", pwd)
	class := testutil.CreateClass(t, env.store, sch.ID, "Grade 1")
	student := testutil.CreateStudent(t, env.store, class, "Alice", 1, "")

	adminToken := env.getToken(t, sch.Actor())

	tests := []httpTest{
		{
			name:     "no token",
			path:     "/v1/schools/" + sch.ID,
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "bad token",
			path:     "/v1/schools/" + sch.ID,
			token:    "not.a.jwt",
			wantCode: http.StatusUnauthorized,
			wantData: []byte(`{"error": "invalid or expired jwt"}`),
		},
		{
			name:     "student",
			path:     "/v1/schools/" + sch.ID,
			token:    env.getToken(t, student.Actor()),
			wantCode: http.StatusForbidden,
			wantData: []byte(`{"error": "permission denied"}`),
		},
		{
			name:     "other school",
			path:     "/v1/schools/" + other.ID,
			token:    adminToken,
			wantCode: http.StatusNotFound,
			wantData: []byte(`{"error": "school not found"}`),
		},
		{
			name:     "success",
			path:     "/v1/schools/" + sch.ID,
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, sch),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodGet
			env.serve(t, tt)
		})
	}
}

func TestTokenIssuer(t *testing.T) {
	conf := core.NewTestConfig()
	tokens := echoapi.NewTokenIssuer(conf)
	actor := core.Actor{ID: "t1", Name: "Mr Maths", SchoolID: "s1", Role: core.RoleTeacher}

	token, err := tokens.GenerateToken(actor)
	require.NoError(t, err)

	claims := new(echoapi.Claims)
	_, err = jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(conf.SecretKey), nil
	})
	require.NoError(t, err)
	assert.Equal(t, actor, claims.Actor())
	assert.Equal(t, conf.AppName, claims.Issuer)

	t.Run("expired token", func(t *testing.T) {
		env := setup(t)
		expired := &echoapi.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    conf.AppName,
				Subject:   "s1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
			SchoolID: "s1",
			Role:     core.RoleAdmin,
		}
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expired).SignedString([]byte(conf.SecretKey))
		require.NoError(t, err)

		env.serve(t, httpTest{
			method:   http.MethodGet,
			path:     "/v1/schools/s1",
			token:    raw,
			wantCode: http.StatusUnauthorized,
		})
	})

	t.Run("foreign key", func(t *testing.T) {
		env := setup(t)
		sch := testutil.CreateSchool(t, env.schools, "Jane Doe", "Greenwood High", "jane@greenwood.edu", "")
		forged, err := echoapi.NewTokenIssuer(&core.Config{AppName: conf.AppName, SecretKey: "other", Server: conf.Server}).
			GenerateToken(sch.Actor())
		require.NoError(t, err)

		env.serve(t, httpTest{
			method:   http.MethodGet,
			path:     "/v1/schools/" + sch.ID,
			token:    forged,
			wantCode: http.StatusUnauthorized,
		})
	})

}
