package docs

// @title Storybook Services API
// @version 1.0
// @description Generates short illustrated children's stories with Gemini
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.one-green.io/support
// @contact.email support@one-green.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @BasePath /
// @schemes http https

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
// @description Enter `ApiKey ` followed by your API key (e.g. "ApiKey <key>"), or send the key in the X-API-Key header
