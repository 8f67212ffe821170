package policy

import "testing"

func TestResolve_Defaults(t *testing.T) {
	// 不给任何开关：默认全宽松
	cfg := Resolve(nil, false)

	if cfg.AuthnStrict || cfg.ObjectLevelStrict || cfg.PropertyLevelStrict ||
		cfg.FunctionLevelStrict || cfg.BusinessFlowStrict ||
		cfg.ResourceLimitsStrict || cfg.SSRFStrict {
		t.Errorf("缺省应为全宽松, got %+v", cfg)
	}
	if cfg.SafeModeInverted {
		t.Error("SafeModeInverted 应为 false")
	}
}

func TestResolve_IndividualFlags(t *testing.T) {
	cfg := Resolve(map[string]bool{
		FlagObjectLevel:  true,
		FlagBusinessFlow: true,
	}, false)

	if !cfg.ObjectLevelStrict {
		t.Error("object_level 应为严格")
	}
	if !cfg.BusinessFlowStrict {
		t.Error("business_flow 应为严格")
	}
	if cfg.AuthnStrict || cfg.PropertyLevelStrict || cfg.FunctionLevelStrict {
		t.Error("未设置的开关应保持宽松")
	}
}

func TestResolve_SafeModeInvertsEverything(t *testing.T) {
	// 安全模式下每个开关取反：原始宽松 -> 生效严格
	cfg := Resolve(map[string]bool{FlagAuthn: true}, true)

	if cfg.AuthnStrict {
		t.Error("authn 原始为 true，安全模式下应取反为 false")
	}
	if !cfg.ObjectLevelStrict || !cfg.PropertyLevelStrict ||
		!cfg.FunctionLevelStrict || !cfg.BusinessFlowStrict ||
		!cfg.ResourceLimitsStrict || !cfg.SSRFStrict {
		t.Errorf("缺省开关在安全模式下应全部严格, got %+v", cfg)
	}
	if !cfg.SafeModeInverted {
		t.Error("SafeModeInverted 应为 true")
	}
}

func TestAllStrictAllPermissive(t *testing.T) {
	if s := AllStrict(); !s.ObjectLevelStrict || !s.BusinessFlowStrict {
		t.Error("AllStrict 应全严格")
	}
	if p := AllPermissive(); p.ObjectLevelStrict || p.BusinessFlowStrict {
		t.Error("AllPermissive 应全宽松")
	}
}
