// File: internal/autofill/keywords.go
package autofill

import "strings"

// Role is the semantic purpose assigned to a form control.
type Role string

const (
	RoleNone            Role = ""
	RoleUsername        Role = "username"
	RoleName            Role = "name"
	RoleFirstName       Role = "firstName"
	RoleLastName        Role = "lastName"
	RoleAddress         Role = "address"
	RolePhone           Role = "phone"
	RoleEmail           Role = "email"
	RolePassword        Role = "password"
	RoleConfirmPassword Role = "confirmPassword"
	// Pseudo roles reported by the secondary passes.
	RoleConsent Role = "consent"
	RoleCountry Role = "country"
	RoleState   Role = "state"
)

var roleKeywords = map[Role][]string{
	RoleUsername: {
		"username", "user", "loginname", "login", "account", "userid", "user-id", "user_id",
		"nickname", "uname",
	},
	RoleName: {
		"name", "fullname", "full-name", "full_name", "displayname", "profile-name", "realname",
		"customer-name", "customer_name", "clientname",
	},
	RoleFirstName: {
		"firstname", "first-name", "first_name", "fname", "given-name", "givenname", "forename",
		"first", "namefirst",
	},
	RoleLastName: {
		"lastname", "last-name", "last_name", "lname", "family-name", "familyname", "surname",
		"last", "namelast", "secondname",
	},
	RoleAddress: {
		"address", "street", "streetaddress", "street-address", "addr", "location",
		"mailing-address", "residence", "addressline1", "address1", "addressline",
	},
	RolePhone: {
		"phone", "telephone", "phone-number", "phonenum", "phonenumber", "tel", "mobile",
		"cellphone", "cell-phone", "contactnumber", "cell", "mobilephone", "mobile-phone",
		"daytimephone", "eveningphone", "workphone", "homephone", "primaryphone", "phone_number",
		"phone-mobile", "contact-phone", "cellphone-number", "mobile_number", "mobileno",
		"phone-no", "contactphone", "phonecontact", "contact_phone", "phonemobile",
		"phone_mobile", "phone_home", "phone_work", "phone1", "phonearea", "phonelocal",
		"phonecountry", "phoneext", "extension", "phone-area-code", "intlphone",
		"international-phone", "countrycode",
	},
	RoleEmail: {
		"email", "e-mail", "emailaddress", "email-address", "mail", "contact-email", "useremail",
		"emailid", "email_id", "user_email", "user-email", "your-email", "primary-email",
		"primary_email", "login_email",
	},
	RolePassword: {
		"password", "pass", "pwd", "passwd", "passw", "secret", "userpassword", "user-password",
		"user_password", "newpassword", "new-password", "new_password", "create-password",
		"create_password", "choose-password", "password-new", "security-password", "secretkey",
		"passcode", "pin", "pincode", "pin-code", "password1", "reg-password", "reg_password",
		"signup-password", "signup_password", "registration-password", "account-password",
		"accountpassword", "set-password", "define-password", "login-password",
		"log-in-password",
	},
	RoleConfirmPassword: {
		"confirm-password", "confirmpassword", "confirm_password", "password-confirm",
		"password_confirm", "repeatpassword", "repeat-password", "password-repeat",
		"passwordrepeat", "verify-password", "verifypassword", "reenterpassword",
		"re-enter-password", "re_enter_password", "password-verification", "password-check",
		"password_verify", "password2", "passwd2", "reinput-password", "password-reenter",
	},
}

// classificationOrder is the keyword evaluation order. Among the trailing
// roles, the specific name roles precede the generic "name" so that
// "first_name" is not taken for a full name.
var classificationOrder = []Role{
	RoleEmail,
	RolePhone,
	RolePassword,
	RoleConfirmPassword,
	RoleUsername,
	RoleFirstName,
	RoleLastName,
	RoleName,
	RoleAddress,
}

var (
	consentKeywords    = []string{"agree", "terms", "condition", "accept", "policy", "consent", "privacy"}
	phoneGroupKeywords = []string{"phone", "tel", "mobile", "area", "prefix", "suffix", "cell"}
)

// matchesAny reports whether any value contains any keyword. An exact match
// is a special case of containment; empty values never match.
func matchesAny(vals []string, keywords []string) bool {
	for _, p := range vals {
		if p == "" {
			continue
		}
		for _, kw := range keywords {
			if strings.Contains(p, kw) {
				return true
			}
		}
	}
	return false
}
