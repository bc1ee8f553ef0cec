package i18n

var english = map[string]string{
	"success":              "Success",
	"invalidRequest":       "The request body is malformed",
	"regDisabled":          "Registration is disabled",
	"maxUsersReached":      "The maximum number of users has been reached",
	"emptyRegKey":          "A registration code is required",
	"notExistRegKey":       "The registration code does not exist",
	"noRegKeyCount":        "The registration code has no uses left",
	"regKeyExpire":         "The registration code has expired",
	"noDomainPermRegKey":   "The registration code does not allow this domain",
	"noDomainPermReg":      "Registration under this domain is not allowed",
	"trustLevelNotEnough":  "Your trust level is too low to register",
	"rateLimited":          "Too many attempts, please try again later",
	"notEmail":             "Invalid email address",
	"pwdLengthLimit":       "The password must be at most 30 characters",
	"emailLengthLimit":     "The email name must be at most 30 characters",
	"pwdMinLengthLimit":    "The password must be at least 6 characters",
	"notEmailDomain":       "This email domain is not served",
	"emailAndPwdEmpty":     "Email and password are required",
	"authCodeEmpty":        "The authorization code is missing",
	"botVerifyFail":        "Human verification failed",
	"oauthConfigError":     "The login provider is not configured",
	"noDomainVariable":     "No mail domain is configured",
	"getAccessTokenFailed": "Could not obtain an access token from the login provider",
	"getUserInfoFailed":    "Could not fetch the user profile from the login provider",
	"isRegAccount":         "This email is already registered",
	"isDelUser":            "This account has been deleted",
	"notExistUser":         "The user does not exist",
	"isBanUser":            "This account has been banned",
	"IncorrectPwd":         "Incorrect password",
	"oauthUserInfoError":   "The login provider returned an incomplete profile",
	"emailAlreadyExists":   "The email address already exists",
	"unauthorized":         "Please log in again",
	"internalError":        "Internal server error",
}

var chinese = map[string]string{
	"success":              "成功",
	"invalidRequest":       "请求格式错误",
	"regDisabled":          "注册已关闭",
	"maxUsersReached":      "用户数量已达上限",
	"emptyRegKey":          "注册码不能为空",
	"notExistRegKey":       "注册码不存在",
	"noRegKeyCount":        "注册码使用次数已用完",
	"regKeyExpire":         "注册码已过期",
	"noDomainPermRegKey":   "该注册码无权使用此域名",
	"noDomainPermReg":      "无权使用此域名注册",
	"trustLevelNotEnough":  "信任等级不足，无法注册",
	"rateLimited":          "尝试次数过多，请稍后再试",
	"notEmail":             "邮箱格式不正确",
	"pwdLengthLimit":       "密码长度不能超过30位",
	"emailLengthLimit":     "邮箱名长度不能超过30位",
	"pwdMinLengthLimit":    "密码长度不能少于6位",
	"notEmailDomain":       "不支持该邮箱域名",
	"emailAndPwdEmpty":     "邮箱和密码不能为空",
	"authCodeEmpty":        "授权码不能为空",
	"botVerifyFail":        "人机验证失败",
	"oauthConfigError":     "第三方登录未配置",
	"noDomainVariable":     "未配置邮箱域名",
	"getAccessTokenFailed": "获取访问令牌失败",
	"getUserInfoFailed":    "获取用户信息失败",
	"isRegAccount":         "该邮箱已被注册",
	"isDelUser":            "该账号已被删除",
	"notExistUser":         "用户不存在",
	"isBanUser":            "该账号已被封禁",
	"IncorrectPwd":         "密码错误",
	"oauthUserInfoError":   "第三方返回的用户信息不完整",
	"emailAlreadyExists":   "邮箱已存在",
	"unauthorized":         "身份认证失效，请重新登录",
	"internalError":        "服务器内部错误",
}
