package policy

// ==================== 策略开关名 ====================

// 各授权类别的开关名（原始 flag map 的 key）
const (
	FlagAuthn          = "authn"
	FlagObjectLevel    = "object_level"
	FlagPropertyLevel  = "property_level"
	FlagFunctionLevel  = "function_level"
	FlagBusinessFlow   = "business_flow"
	FlagResourceLimits = "resource_limits"
	FlagSSRF           = "ssrf"
)

// ==================== PolicyConfig ====================

// Config 进程级策略快照
// 启动时 Resolve 一次，之后只读共享，核心逻辑一律通过参数显式接收，
// 不允许从全局状态读取
type Config struct {
	AuthnStrict          bool
	ObjectLevelStrict    bool
	PropertyLevelStrict  bool
	FunctionLevelStrict  bool
	BusinessFlowStrict   bool
	ResourceLimitsStrict bool
	SSRFStrict           bool

	// SafeModeInverted 记录本快照是否经过安全模式取反
	SafeModeInverted bool
}

// Resolve 把原始开关表解析成策略快照
// 缺失的开关按宽松（严格未启用）处理，呼应系统默认的最大宽松姿态；
// safeMode 为 true 时每个开关的生效值取原始值的逻辑非，
// 一个总闸即可强制全系统进入严格模式
func Resolve(raw map[string]bool, safeMode bool) *Config {
	get := func(name string) bool {
		v := raw[name]
		if safeMode {
			return !v
		}
		return v
	}

	return &Config{
		AuthnStrict:          get(FlagAuthn),
		ObjectLevelStrict:    get(FlagObjectLevel),
		PropertyLevelStrict:  get(FlagPropertyLevel),
		FunctionLevelStrict:  get(FlagFunctionLevel),
		BusinessFlowStrict:   get(FlagBusinessFlow),
		ResourceLimitsStrict: get(FlagResourceLimits),
		SSRFStrict:           get(FlagSSRF),
		SafeModeInverted:     safeMode,
	}
}

// AllStrict 全严格快照（测试和安全演示用）
func AllStrict() *Config {
	return Resolve(nil, true)
}

// AllPermissive 全宽松快照（测试用）
func AllPermissive() *Config {
	return Resolve(nil, false)
}

// Hardened 任一开关处于严格即视为加固姿态
// 加固姿态下错误响应不回显内部细节（宽松姿态刻意回显，信息泄露演示）
func (c *Config) Hardened() bool {
	return c.AuthnStrict || c.ObjectLevelStrict || c.PropertyLevelStrict ||
		c.FunctionLevelStrict || c.BusinessFlowStrict ||
		c.ResourceLimitsStrict || c.SSRFStrict
}
