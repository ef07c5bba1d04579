package sso

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	mock_browser "github.com/sso-tools/sso-grabber/internal/browser/mocks"
	"github.com/sso-tools/sso-grabber/internal/config"
	"github.com/sso-tools/sso-grabber/internal/cookiecache"
)

const (
	testPortalURL = "https://d-12345.awsapps.com/start"
	testUsername  = "jdoe"
	testPassword  = "hunter2"
)

// newTestService creates a service wired to a mocked browser session.
func newTestService(t *testing.T) (*ServiceImpl, *mock_browser.MockSession, *gomock.Controller) {
	t.Helper()

	ctrl := gomock.NewController(t)
	session := mock_browser.NewMockSession(ctrl)

	service, err := NewService(&config.Config{
		PortalURL: testPortalURL,
		Username:  testUsername,
	})
	require.NoError(t, err)

	service.session = session

	return service, session, ctrl
}

// withMemoryStore attaches an in-memory cookie store to the service.
func withMemoryStore(t *testing.T, service *ServiceImpl) *cookiecache.Store {
	t.Helper()

	store, err := cookiecache.NewStoreWithFs(afero.NewMemMapFs(), "/cookies")
	require.NoError(t, err)

	service.store = store

	return store
}

// expectAbsent registers a failed lookup for the given selector.
func expectAbsent(session *mock_browser.MockSession, selector string) {
	session.EXPECT().
		Find(gomock.Any(), selector, elementWaitTimeout).
		Return(nil, false)
}

// expectLoginFieldsAbsent registers failed lookups for all four login form steps.
func expectLoginFieldsAbsent(session *mock_browser.MockSession) {
	expectAbsent(session, usernameFieldSelector)
	expectAbsent(session, usernameSubmitSelector)
	expectAbsent(session, passwordFieldSelector)
	expectAbsent(session, passwordSubmitSelector)
}

// expectFieldFill registers a successful wrapper lookup, clear and fill for a login field.
func expectFieldFill(ctrl *gomock.Controller, session *mock_browser.MockSession, selector, value string) {
	wrapper := mock_browser.NewMockElement(ctrl)
	field := mock_browser.NewMockElement(ctrl)

	session.EXPECT().Find(gomock.Any(), selector, elementWaitTimeout).Return(wrapper, true)
	wrapper.EXPECT().Find(fieldInputSelector, elementWaitTimeout).Return(field, true)
	field.EXPECT().Clear().Return(nil)
	field.EXPECT().Input(value).Return(nil)
}

// expectButtonClick registers a successful wrapper lookup and click for a submit button.
func expectButtonClick(ctrl *gomock.Controller, session *mock_browser.MockSession, selector string) {
	wrapper := mock_browser.NewMockElement(ctrl)
	button := mock_browser.NewMockElement(ctrl)

	session.EXPECT().Find(gomock.Any(), selector, elementWaitTimeout).Return(wrapper, true)
	wrapper.EXPECT().Find(fieldButtonSelector, elementWaitTimeout).Return(button, true)
	button.EXPECT().Click().Return(nil)
}

// expectDashboard registers a successful dashboard marker lookup.
func expectDashboard(ctrl *gomock.Controller, session *mock_browser.MockSession) {
	session.EXPECT().
		Find(gomock.Any(), dashboardSelector, dashboardWaitTimeout).
		Return(mock_browser.NewMockElement(ctrl), true)
}

// TestNewService tests the NewService function.
func TestNewService(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		PortalURL: testPortalURL,
		Username:  testUsername,
	}

	service, err := NewService(cfg)

	require.NoError(t, err)
	assert.NotNil(t, service)
	assert.Equal(t, cfg, service.cfg)
	assert.Nil(t, service.session)
	assert.Nil(t, service.store, "no cookie dir means no cookie store")
	assert.Equal(t, cookiecache.CacheKey(testUsername, testPortalURL), service.cacheKey)
}

// TestNewService_WithCookieDir tests that a cookie dir enables persistence.
func TestNewService_WithCookieDir(t *testing.T) {
	t.Parallel()

	service, err := NewService(&config.Config{
		PortalURL: testPortalURL,
		Username:  testUsername,
		CookieDir: t.TempDir(),
	})

	require.NoError(t, err)
	assert.NotNil(t, service.store)
}

// TestLogin_ToleratesAnyAbsentSubset tests that every combination of missing
// login form steps completes without error.
func TestLogin_ToleratesAnyAbsentSubset(t *testing.T) {
	t.Parallel()

	steps := []struct {
		selector string
		isField  bool
		value    string
	}{
		{usernameFieldSelector, true, testUsername},
		{usernameSubmitSelector, false, ""},
		{passwordFieldSelector, true, testPassword},
		{passwordSubmitSelector, false, ""},
	}

	for mask := 0; mask < 16; mask++ {
		mask := mask
		t.Run(fmt.Sprintf("present mask %04b", mask), func(t *testing.T) {
			t.Parallel()

			service, session, ctrl := newTestService(t)

			for i, step := range steps {
				switch {
				case mask&(1<<i) == 0:
					expectAbsent(session, step.selector)
				case step.isField:
					expectFieldFill(ctrl, session, step.selector, step.value)
				default:
					expectButtonClick(ctrl, session, step.selector)
				}
			}

			// Must complete regardless of which steps the portal renders.
			service.Login(context.Background(), testUsername, testPassword)
		})
	}
}

// TestLogin_FieldErrorsAreSwallowed tests that element-level failures do not escape Login.
func TestLogin_FieldErrorsAreSwallowed(t *testing.T) {
	t.Parallel()

	service, session, ctrl := newTestService(t)

	wrapper := mock_browser.NewMockElement(ctrl)
	field := mock_browser.NewMockElement(ctrl)

	session.EXPECT().Find(gomock.Any(), usernameFieldSelector, elementWaitTimeout).Return(wrapper, true)
	wrapper.EXPECT().Find(fieldInputSelector, elementWaitTimeout).Return(field, true)
	field.EXPECT().Clear().Return(assert.AnError)

	expectAbsent(session, usernameSubmitSelector)
	expectAbsent(session, passwordFieldSelector)
	expectAbsent(session, passwordSubmitSelector)

	service.Login(context.Background(), testUsername, testPassword)
}

// TestRefreshToken_CachedSession tests the flow where the portal skips the
// whole login form and the dashboard is already present.
func TestRefreshToken_CachedSession(t *testing.T) {
	t.Parallel()

	service, session, ctrl := newTestService(t)
	ctx := context.Background()

	session.EXPECT().Navigate(gomock.Any(), testPortalURL).Return(nil).Times(2)
	expectLoginFieldsAbsent(session)
	expectDashboard(ctrl, session)
	session.EXPECT().
		Cookies(gomock.Any(), []string{testPortalURL}).
		Return([]*proto.NetworkCookie{
			{Name: "locale", Value: "en-US"},
			{Name: authCookieName, Value: "token-value", Expires: proto.TimeSinceEpoch(1700000000)},
		}, nil)

	outcome, err := service.RefreshToken(ctx, testUsername, testPassword, false)

	require.NoError(t, err)
	assert.Equal(t, OutcomeToken, outcome.Kind)
	assert.Equal(t, "token-value", outcome.Token.Value)
	assert.Equal(t, time.Unix(1700000000, 0), outcome.Token.ExpiresAt)
}

// TestRefreshToken_WrongCredentials tests that a rejected login surfaces the
// portal's error banner as an alert outcome.
func TestRefreshToken_WrongCredentials(t *testing.T) {
	t.Parallel()

	service, session, ctrl := newTestService(t)
	ctx := context.Background()

	session.EXPECT().Navigate(gomock.Any(), testPortalURL).Return(nil)

	expectFieldFill(ctrl, session, usernameFieldSelector, testUsername)
	expectButtonClick(ctrl, session, usernameSubmitSelector)
	expectFieldFill(ctrl, session, passwordFieldSelector, "wrong-password")
	expectButtonClick(ctrl, session, passwordSubmitSelector)

	expectAbsent(session, dashboardSelector)

	frame := mock_browser.NewMockElement(ctrl)
	titleEl := mock_browser.NewMockElement(ctrl)
	messageEl := mock_browser.NewMockElement(ctrl)

	session.EXPECT().Find(gomock.Any(), alertFrameSelector, elementWaitTimeout).Return(frame, true)
	frame.EXPECT().Find(alertTitleSelector, elementWaitTimeout).Return(titleEl, true)
	frame.EXPECT().Find(alertMessageSelector, elementWaitTimeout).Return(messageEl, true)
	titleEl.EXPECT().Text().Return("Incorrect username or password.", nil)
	messageEl.EXPECT().Text().Return("Try again.", nil)

	outcome, err := service.RefreshToken(ctx, testUsername, "wrong-password", false)

	require.NoError(t, err)
	assert.Equal(t, OutcomeAlert, outcome.Kind)
	assert.Equal(t, "Incorrect username or password.: Try again.", outcome.Alert.String())
}

// TestRefreshToken_MFARequired tests detection of the MFA prompt and
// answering it via SendMFA.
func TestRefreshToken_MFARequired(t *testing.T) {
	t.Parallel()

	service, session, ctrl := newTestService(t)
	ctx := context.Background()

	session.EXPECT().Navigate(gomock.Any(), testPortalURL).Return(nil)
	expectLoginFieldsAbsent(session)
	expectAbsent(session, dashboardSelector)
	expectAbsent(session, alertFrameSelector)

	form := mock_browser.NewMockElement(ctrl)
	session.EXPECT().Find(gomock.Any(), mfaFormSelector, elementWaitTimeout).Return(form, true)

	outcome, err := service.RefreshToken(ctx, testUsername, testPassword, false)

	require.NoError(t, err)
	assert.Equal(t, OutcomeMFARequired, outcome.Kind)
	require.NotNil(t, outcome.MFA)

	// Answering the prompt clears the code field, types the code and submits.
	codeField := mock_browser.NewMockElement(ctrl)
	submit := mock_browser.NewMockElement(ctrl)

	form.EXPECT().Find(mfaCodeSelector, mfaElementWaitTimeout).Return(codeField, true)
	form.EXPECT().Find(mfaSubmitSelector, mfaElementWaitTimeout).Return(submit, true)
	codeField.EXPECT().Clear().Return(nil)
	codeField.EXPECT().Input("123456").Return(nil)
	submit.EXPECT().Click().Return(nil)

	require.NoError(t, service.SendMFA(ctx, outcome.MFA, "123456", true))
}

// TestRefreshToken_Unclassified tests that a stalled login with neither an
// alert nor an MFA prompt is an error, not a silent nil.
func TestRefreshToken_Unclassified(t *testing.T) {
	t.Parallel()

	service, session, _ := newTestService(t)

	session.EXPECT().Navigate(gomock.Any(), testPortalURL).Return(nil)
	expectLoginFieldsAbsent(session)
	expectAbsent(session, dashboardSelector)
	expectAbsent(session, alertFrameSelector)
	expectAbsent(session, mfaFormSelector)

	outcome, err := service.RefreshToken(context.Background(), testUsername, testPassword, false)

	require.ErrorIs(t, err, ErrLoginIncomplete)
	assert.Equal(t, OutcomeUnknown, outcome.Kind)
}

// TestCheckAlert_MalformedBanner tests that a banner missing its inner
// elements counts as no alert.
func TestCheckAlert_MalformedBanner(t *testing.T) {
	t.Parallel()

	service, session, ctrl := newTestService(t)

	frame := mock_browser.NewMockElement(ctrl)
	session.EXPECT().Find(gomock.Any(), alertFrameSelector, elementWaitTimeout).Return(frame, true)
	frame.EXPECT().Find(alertTitleSelector, elementWaitTimeout).Return(nil, false)

	_, ok := service.checkAlert(context.Background())

	assert.False(t, ok)
}

// TestGetToken_Restore tests that restore navigates the browser back afterwards.
func TestGetToken_Restore(t *testing.T) {
	t.Parallel()

	service, session, ctrl := newTestService(t)

	expectDashboard(ctrl, session)
	session.EXPECT().Navigate(gomock.Any(), testPortalURL).Return(nil)
	session.EXPECT().
		Cookies(gomock.Any(), []string{testPortalURL}).
		Return([]*proto.NetworkCookie{
			{Name: authCookieName, Value: "token-value", Expires: proto.TimeSinceEpoch(1700000000)},
		}, nil)
	session.EXPECT().Back(gomock.Any()).Return(nil)

	token, err := service.GetToken(context.Background(), true)

	require.NoError(t, err)
	assert.Equal(t, "token-value", token.Value)
}

// TestGetToken_DashboardAbsent tests the timeout path of GetToken.
func TestGetToken_DashboardAbsent(t *testing.T) {
	t.Parallel()

	service, session, _ := newTestService(t)

	expectAbsent(session, dashboardSelector)

	_, err := service.GetToken(context.Background(), false)

	require.ErrorIs(t, err, ErrDashboardNotFound)
}

// TestGetToken_AuthCookieMissing tests that a present dashboard without the
// auth cookie is a distinct failure.
func TestGetToken_AuthCookieMissing(t *testing.T) {
	t.Parallel()

	service, session, ctrl := newTestService(t)

	expectDashboard(ctrl, session)
	session.EXPECT().Navigate(gomock.Any(), testPortalURL).Return(nil)
	session.EXPECT().
		Cookies(gomock.Any(), []string{testPortalURL}).
		Return([]*proto.NetworkCookie{{Name: "locale", Value: "en-US"}}, nil)

	_, err := service.GetToken(context.Background(), false)

	require.ErrorIs(t, err, ErrAuthCookieNotFound)
}

// TestGetToken_SessionNotOpen tests operations before Open.
func TestGetToken_SessionNotOpen(t *testing.T) {
	t.Parallel()

	service, err := NewService(&config.Config{
		PortalURL: testPortalURL,
		Username:  testUsername,
	})
	require.NoError(t, err)

	_, err = service.GetToken(context.Background(), false)
	require.ErrorIs(t, err, ErrSessionNotOpen)

	require.ErrorIs(t, service.Get(context.Background()), ErrSessionNotOpen)
}

// TestGet_RestoresCachedCookies tests cookie injection on navigation.
func TestGet_RestoresCachedCookies(t *testing.T) {
	t.Parallel()

	service, session, _ := newTestService(t)
	store := withMemoryStore(t, service)

	require.NoError(t, store.Save(service.cacheKey, []cookiecache.Record{
		{Name: "locale", Value: "en-US"},
		{Name: "session-prefs", Value: "abc", Domain: ".awsapps.com"},
	}))

	session.EXPECT().Navigate(gomock.Any(), testPortalURL).Return(nil)
	session.EXPECT().
		SetCookies(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cookies []*proto.NetworkCookieParam) error {
			require.Len(t, cookies, 2)
			assert.Equal(t, "locale", cookies[0].Name)
			assert.Equal(t, "session-prefs", cookies[1].Name)
			assert.Zero(t, cookies[1].Expires, "cached cookies are re-injected without expiry")

			return nil
		})

	require.NoError(t, service.Get(context.Background()))
}

// TestGet_NoCacheFile tests that a missing cache injects nothing and errors nothing.
func TestGet_NoCacheFile(t *testing.T) {
	t.Parallel()

	service, session, _ := newTestService(t)
	withMemoryStore(t, service)

	// No SetCookies expectation: injecting anything would fail the test.
	session.EXPECT().Navigate(gomock.Any(), testPortalURL).Return(nil)

	require.NoError(t, service.Get(context.Background()))
}

// TestClose_ExcludesAuthCookieFromCache tests that teardown persists every
// cookie except the auth cookie, then quits the browser.
func TestClose_ExcludesAuthCookieFromCache(t *testing.T) {
	t.Parallel()

	service, session, _ := newTestService(t)
	store := withMemoryStore(t, service)

	session.EXPECT().
		Cookies(gomock.Any(), gomock.Nil()).
		Return([]*proto.NetworkCookie{
			{Name: "locale", Value: "en-US"},
			{Name: authCookieName, Value: "secret-token"},
			{Name: "session-prefs", Value: "abc"},
		}, nil)
	session.EXPECT().Close(gomock.Any()).Return(nil)

	require.NoError(t, service.Close(context.Background()))

	records, err := store.Load(service.cacheKey)
	require.NoError(t, err)
	require.Len(t, records, 2)

	for _, record := range records {
		record := record
		assert.NotEqual(t, authCookieName, record.Name)
	}
}

// TestClose_WithoutStore tests that teardown without persistence just quits the browser.
func TestClose_WithoutStore(t *testing.T) {
	t.Parallel()

	service, session, _ := newTestService(t)

	session.EXPECT().Close(gomock.Any()).Return(nil)

	require.NoError(t, service.Close(context.Background()))
	assert.Nil(t, service.session)

	// A second Close is a no-op.
	require.NoError(t, service.Close(context.Background()))
}

// TestSendMFA_NoPrompt tests SendMFA without a detected prompt.
func TestSendMFA_NoPrompt(t *testing.T) {
	t.Parallel()

	service, _, _ := newTestService(t)

	err := service.SendMFA(context.Background(), nil, "123456", true)

	require.ErrorIs(t, err, ErrNoMFAPrompt)
}

// TestSendMFA_MissingCodeField tests SendMFA against a form without the code input.
func TestSendMFA_MissingCodeField(t *testing.T) {
	t.Parallel()

	service, _, ctrl := newTestService(t)

	form := mock_browser.NewMockElement(ctrl)
	form.EXPECT().Find(mfaCodeSelector, mfaElementWaitTimeout).Return(nil, false)

	err := service.SendMFA(context.Background(), &MFAPrompt{form: form}, "123456", true)

	require.ErrorIs(t, err, ErrMFAElementNotFound)
}

// TestSentinelErrors tests that all sentinel errors are defined and have proper messages.
func TestSentinelErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		err   error
		wants string
	}{
		{
			name:  "ErrSessionNotOpen",
			err:   ErrSessionNotOpen,
			wants: "browser session is not open",
		},
		{
			name:  "ErrDashboardNotFound",
			err:   ErrDashboardNotFound,
			wants: "portal dashboard did not appear in time",
		},
		{
			name:  "ErrAuthCookieNotFound",
			err:   ErrAuthCookieNotFound,
			wants: "auth cookie not found - login may have failed",
		},
		{
			name:  "ErrLoginIncomplete",
			err:   ErrLoginIncomplete,
			wants: "login did not complete and no alert or MFA prompt was detected",
		},
		{
			name:  "ErrNoMFAPrompt",
			err:   ErrNoMFAPrompt,
			wants: "no MFA prompt to answer",
		},
		{
			name:  "ErrMFAElementNotFound",
			err:   ErrMFAElementNotFound,
			wants: "mfa form element not found",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			require.Error(t, tt.err)
			assert.Equal(t, tt.wants, tt.err.Error())
		})
	}
}

// TestConstants tests that all constants are properly defined.
func TestConstants(t *testing.T) {
	t.Parallel()

	// Test the auth cookie name.
	assert.Equal(t, "x-amz-sso_authn", authCookieName)

	// Test the dashboard marker.
	assert.Equal(t, "portal-dashboard", dashboardSelector)

	// Test login form selectors.
	assert.Equal(t, "#username-input", usernameFieldSelector)
	assert.Equal(t, "#username-submit-button", usernameSubmitSelector)
	assert.Equal(t, "#password-input", passwordFieldSelector)
	assert.Equal(t, "#password-submit-button", passwordSubmitSelector)
	assert.Equal(t, "div.awsui-input-container > input", fieldInputSelector)

	// Test alert selectors.
	assert.Equal(t, "#alertFrame", alertFrameSelector)
	assert.Equal(t, "div.a-alert-error > div.a-box-inner > h4", alertTitleSelector)
	assert.Equal(t, "div.a-alert-error > div.a-box-inner > div.gwt-Label", alertMessageSelector)

	// Test MFA selectors.
	assert.Equal(t, "form", mfaFormSelector)
	assert.Equal(t, "#awsui-input-0", mfaCodeSelector)
	assert.Equal(t, "button.awsui-button-variant-primary", mfaSubmitSelector)

	// Test timing constants.
	assert.Equal(t, 1, int(elementWaitTimeout.Seconds()))
	assert.Equal(t, 1, int(dashboardWaitTimeout.Seconds()))
	assert.Equal(t, 10, int(mfaElementWaitTimeout.Seconds()))
}
