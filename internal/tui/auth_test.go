package tui

import (
	"strings"
	"testing"
)

func TestAuthFormFieldNavigation(t *testing.T) {
	m := newAuthModel(authLogin, nil)
	m.focusInputs()

	m, _ = m.Update(keyMsg("tab"))
	if m.focus != authFieldPassword {
		t.Errorf("focus after tab = %d, want password", m.focus)
	}
	m, _ = m.Update(keyMsg("tab"))
	if m.focus != authFieldEmail {
		t.Errorf("focus after second tab = %d, want email", m.focus)
	}
	m, _ = m.Update(keyMsg("shift+tab"))
	if m.focus != authFieldPassword {
		t.Errorf("focus after shift+tab = %d, want password", m.focus)
	}
}

func TestAuthFormEnterMovesToPassword(t *testing.T) {
	m := newAuthModel(authLogin, nil)
	m.focusInputs()
	m, _ = m.Update(keyMsg("a@x.com"))

	m, _ = m.Update(keyMsg("enter"))
	if m.focus != authFieldPassword {
		t.Errorf("focus = %d, want password", m.focus)
	}
	if m.busy {
		t.Error("form should not be busy yet")
	}
}

func TestAuthFormPasswordMasked(t *testing.T) {
	m := newAuthModel(authSignup, nil)
	m.focus = authFieldPassword
	m.focusInputs()
	m, _ = m.Update(keyMsg("hunter22"))

	out := m.View("*")
	if strings.Contains(out, "hunter22") {
		t.Errorf("password rendered in clear:\n%s", out)
	}
	if m.inputs[authFieldPassword].Value() != "hunter22" {
		t.Errorf("password value = %q", m.inputs[authFieldPassword].Value())
	}
}

func TestAuthFormBusyBlocksResubmit(t *testing.T) {
	m := newAuthModel(authLogin, nil)
	m.focus = authFieldPassword
	m.busy = true

	m, cmd := m.Update(keyMsg("enter"))
	if cmd != nil {
		t.Error("submit while busy must be ignored")
	}
	if !strings.Contains(m.View("*"), "Logging in...") {
		t.Error("busy login form should say Logging in...")
	}
}

func TestAuthFormIgnoresOtherKindResult(t *testing.T) {
	m := newAuthModel(authLogin, nil)
	m.busy = true
	m, _ = m.Update(authDoneMsg{kind: authSignup})
	if !m.busy {
		t.Error("a sign up result must not settle the login form")
	}
}

func TestAuthFormResetKeepsEmail(t *testing.T) {
	m := newAuthModel(authLogin, nil)
	m.inputs[authFieldEmail].SetValue("a@x.com")
	m.inputs[authFieldPassword].SetValue("pw")
	m.err = "boom"

	m.reset(true)
	if m.inputs[authFieldEmail].Value() != "a@x.com" || m.inputs[authFieldPassword].Value() != "" {
		t.Errorf("reset(true): email=%q password=%q", m.inputs[authFieldEmail].Value(), m.inputs[authFieldPassword].Value())
	}
	if m.focus != authFieldPassword || m.err != "" {
		t.Errorf("reset(true): focus=%d err=%q", m.focus, m.err)
	}

	m.reset(false)
	if m.inputs[authFieldEmail].Value() != "" || m.focus != authFieldEmail {
		t.Errorf("reset(false): email=%q focus=%d", m.inputs[authFieldEmail].Value(), m.focus)
	}
}
